package transport

// Channel is a bidirectional, message-framed connection between one
// participant and the relay. Frames are UTF-8 JSON text.
//
// Read and Write may each be called from one goroutine at a time; Close
// may be called from any goroutine and unblocks a pending Read.
type Channel interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
	RemoteAddr() string
}

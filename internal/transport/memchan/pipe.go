// Package memchan provides an in-process transport.Channel pair for tests
package memchan

import (
	"errors"
	"sync"
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/transport"
)

const bufferSize = 256

// End is one side of an in-memory pipe
type End struct {
	in   <-chan []byte
	out  chan<- []byte
	pipe *pipe
	name string
}

type pipe struct {
	once sync.Once
	done chan struct{}
}

var _ transport.Channel = (*End)(nil)

// Pipe returns two connected ends. Closing either end closes both.
func Pipe() (*End, *End) {
	ab := make(chan []byte, bufferSize)
	ba := make(chan []byte, bufferSize)
	p := &pipe{done: make(chan struct{})}
	return &End{in: ba, out: ab, pipe: p, name: "mem-a"},
		&End{in: ab, out: ba, pipe: p, name: "mem-b"}
}

// Read returns the next frame, draining anything already queued before
// reporting a closed pipe
func (e *End) Read() ([]byte, error) {
	select {
	case data := <-e.in:
		return data, nil
	default:
	}
	select {
	case data := <-e.in:
		return data, nil
	case <-e.pipe.done:
		select {
		case data := <-e.in:
			return data, nil
		default:
			return nil, model.ErrChannelClosed
		}
	}
}

// ErrTimeout is returned by ReadWithin when nothing arrives in time
var ErrTimeout = errors.New("memchan: read timed out")

// ReadWithin is Read with a deadline. A timed-out call consumes nothing.
func (e *End) ReadWithin(d time.Duration) ([]byte, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case data := <-e.in:
		return data, nil
	case <-e.pipe.done:
		return e.Read()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Write queues a frame for the other end
func (e *End) Write(data []byte) error {
	select {
	case <-e.pipe.done:
		return model.ErrChannelClosed
	default:
	}
	select {
	case e.out <- append([]byte(nil), data...):
		return nil
	case <-e.pipe.done:
		return model.ErrChannelClosed
	}
}

// Close shuts both ends
func (e *End) Close() error {
	e.pipe.once.Do(func() { close(e.pipe.done) })
	return nil
}

// Closed reports whether the pipe has been closed
func (e *End) Closed() bool {
	select {
	case <-e.pipe.done:
		return true
	default:
		return false
	}
}

// RemoteAddr names the end for logging
func (e *End) RemoteAddr() string {
	return e.name
}

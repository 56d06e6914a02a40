package relay

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// Config holds relay behaviour settings
type Config struct {
	// RejectGrace is how long a rejected joiner keeps its channel open so
	// the ERROR frame can be read before the relay closes it
	RejectGrace time.Duration

	// SendBuffer is the per-participant outbound queue length. A participant
	// that falls this far behind is disconnected.
	SendBuffer int

	// DirectoryTimeout bounds best-effort writes to the presence directory
	DirectoryTimeout time.Duration
}

// DefaultConfig returns the default relay configuration
func DefaultConfig() Config {
	return Config{
		RejectGrace:      300 * time.Millisecond,
		SendBuffer:       256,
		DirectoryTimeout: 2 * time.Second,
	}
}

// IDGenerator produces participant IDs
type IDGenerator func() model.ParticipantID

// UUIDGenerator returns short IDs cut from random UUIDs. Eight hex
// characters keep room codes easy to share while collisions stay rare;
// the hub retries on the off chance one is already in use.
func UUIDGenerator() IDGenerator {
	return func() model.ParticipantID {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		return model.ParticipantID(id[:8])
	}
}

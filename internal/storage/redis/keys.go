package redis

import (
	"github.com/mcoot/guessnumber-go/internal/model"
)

// DefaultKeyPrefix namespaces presence data when Config.KeyPrefix is empty
const DefaultKeyPrefix = "guessnum"

// keys builds the Redis keys for one relay deployment
type keys struct {
	prefix string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keys{prefix: prefix}
}

func (k keys) participant(id model.ParticipantID) string {
	return k.prefix + ":participant:" + string(id)
}

func (k keys) room(id model.RoomID) string {
	return k.prefix + ":room:" + string(id)
}

// roomIndex is the SET of live room IDs
func (k keys) roomIndex() string {
	return k.prefix + ":idx:rooms"
}

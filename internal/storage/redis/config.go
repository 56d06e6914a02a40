package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// KeyPrefix namespaces keys so several relays can share one database
	KeyPrefix string

	PoolSize     int
	MinIdleConns int

	// Presence records expire on their own if the relay dies without
	// cleaning up, so they should outlive any single session.
	ParticipantTTL time.Duration
	RoomTTL        time.Duration
}

// DefaultConfig returns defaults for a local Redis
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		KeyPrefix:      DefaultKeyPrefix,
		PoolSize:       10,
		MinIdleConns:   2,
		ParticipantTTL: 6 * time.Hour,
		RoomTTL:        6 * time.Hour,
	}
}

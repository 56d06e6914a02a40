package model

import "time"

// ParticipantID uniquely identifies a connected participant on the relay
type ParticipantID string

// Participant represents a live connection registered with the relay
type Participant struct {
	ID          ParticipantID
	DisplayName string // set once PLAYER_INFO has been exchanged
	ConnectedAt time.Time
}

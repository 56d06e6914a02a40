package model

import (
	"slices"
	"time"
)

// MaxPlayers is the maximum number of participants in a room, host included
const MaxPlayers = 5

// RoomID identifies a room. A room is named after the participant that created it.
type RoomID string

// HostID returns the participant that owns the room
func (id RoomID) HostID() ParticipantID {
	return ParticipantID(id)
}

// RoomInfo is the directory record for a live room
type RoomInfo struct {
	ID        RoomID
	Members   []ParticipantID // join order, host included while connected
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether the participant is in the room
func (r *RoomInfo) HasMember(id ParticipantID) bool {
	return slices.Contains(r.Members, id)
}

// GuestCount returns the number of members other than the host
func (r *RoomInfo) GuestCount() int {
	n := 0
	for _, m := range r.Members {
		if m != r.ID.HostID() {
			n++
		}
	}
	return n
}

// IsFull reports whether another guest would exceed MaxPlayers
func (r *RoomInfo) IsFull() bool {
	return r.GuestCount() >= MaxPlayers-1
}

package storage

import (
	"context"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// Storage is the presence directory for live rooms and participants.
// It mirrors relay state for lookups; the relay itself stays authoritative.
type Storage interface {
	// Participant operations
	SaveParticipant(ctx context.Context, participant *model.Participant) error
	GetParticipant(ctx context.Context, id model.ParticipantID) (*model.Participant, error)
	DeleteParticipant(ctx context.Context, id model.ParticipantID) error

	// Room operations
	SaveRoom(ctx context.Context, room *model.RoomInfo) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.RoomInfo, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomExists(ctx context.Context, id model.RoomID) (bool, error)
	ListRooms(ctx context.Context) ([]*model.RoomInfo, error)
}

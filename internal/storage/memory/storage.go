package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	participants map[model.ParticipantID]*model.Participant
	rooms        map[model.RoomID]*model.RoomInfo
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		participants: make(map[model.ParticipantID]*model.Participant),
		rooms:        make(map[model.RoomID]*model.RoomInfo),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) SaveParticipant(ctx context.Context, participant *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *participant
	s.participants[p.ID] = &p
	return nil
}

func (s *Storage) GetParticipant(ctx context.Context, id model.ParticipantID) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, model.ErrParticipantNotFound
	}
	out := *p
	return &out, nil
}

func (s *Storage) DeleteParticipant(ctx context.Context, id model.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, id)
	return nil
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.RoomInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	return nil
}

func (s *Storage) RoomExists(ctx context.Context, id model.RoomID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*model.RoomInfo, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, copyRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

// copyRoom detaches stored records from callers' slices
func copyRoom(room *model.RoomInfo) *model.RoomInfo {
	out := *room
	out.Members = slices.Clone(room.Members)
	return &out
}

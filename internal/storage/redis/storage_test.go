package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/guessnumber-go/internal/model"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.ParticipantTTL = time.Hour
	cfg.RoomTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// Participant tests

func (s *StorageSuite) TestSaveAndGetParticipant() {
	p := &model.Participant{ID: "abcd1234", DisplayName: "Alice", ConnectedAt: time.Now()}

	s.Require().NoError(s.storage.SaveParticipant(s.ctx, p))

	retrieved, err := s.storage.GetParticipant(s.ctx, "abcd1234")
	s.Require().NoError(err)
	s.Equal(p.ID, retrieved.ID)
	s.Equal("Alice", retrieved.DisplayName)
}

func (s *StorageSuite) TestGetParticipantNotFound() {
	_, err := s.storage.GetParticipant(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *StorageSuite) TestParticipantExpires() {
	_ = s.storage.SaveParticipant(s.ctx, &model.Participant{ID: "abcd1234"})

	s.mini.FastForward(2 * time.Hour)

	_, err := s.storage.GetParticipant(s.ctx, "abcd1234")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *StorageSuite) TestDeleteParticipant() {
	_ = s.storage.SaveParticipant(s.ctx, &model.Participant{ID: "abcd1234"})

	s.Require().NoError(s.storage.DeleteParticipant(s.ctx, "abcd1234"))

	s.False(s.mini.Exists(s.storage.keys.participant("abcd1234")))
}

// Room tests

func (s *StorageSuite) TestSaveAndGetRoom() {
	room := &model.RoomInfo{
		ID:        "host0001",
		Members:   []model.ParticipantID{"host0001", "guest001"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	s.Require().NoError(s.storage.SaveRoom(s.ctx, room))

	retrieved, err := s.storage.GetRoom(s.ctx, "host0001")
	s.Require().NoError(err)
	s.Equal(room.Members, retrieved.Members)
	s.True(room.CreatedAt.Equal(retrieved.CreatedAt))

	ttl := s.mini.TTL(s.storage.keys.room("host0001"))
	s.Equal(time.Hour, ttl)
}

func (s *StorageSuite) TestGetRoomNotFound() {
	_, err := s.storage.GetRoom(s.ctx, "missing")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestDeleteRoomRemovesIndex() {
	_ = s.storage.SaveRoom(s.ctx, &model.RoomInfo{ID: "host0001"})

	exists, err := s.storage.RoomExists(s.ctx, "host0001")
	s.Require().NoError(err)
	s.True(exists)

	s.Require().NoError(s.storage.DeleteRoom(s.ctx, "host0001"))

	exists, err = s.storage.RoomExists(s.ctx, "host0001")
	s.Require().NoError(err)
	s.False(exists)

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *StorageSuite) TestListRoomsSkipsExpiredRecords() {
	_ = s.storage.SaveRoom(s.ctx, &model.RoomInfo{ID: "bbbb"})
	_ = s.storage.SaveRoom(s.ctx, &model.RoomInfo{ID: "aaaa"})
	s.mini.Del(s.storage.keys.room("bbbb"))

	rooms, err := s.storage.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rooms, 1)
	s.Equal(model.RoomID("aaaa"), rooms[0].ID)

	members, err := s.mini.SMembers(s.storage.keys.roomIndex())
	s.Require().NoError(err)
	s.Equal([]string{"aaaa"}, members)
}

func (s *StorageSuite) TestKeyPrefixSeparatesDeployments() {
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	cfg := DefaultConfig()
	cfg.KeyPrefix = "staging"
	other := NewWithClient(client, cfg)
	defer func() { _ = other.Close() }()

	s.Require().NoError(other.SaveRoom(s.ctx, &model.RoomInfo{ID: "r1"}))

	s.True(s.mini.Exists("staging:room:r1"))
	_, err := s.storage.GetRoom(s.ctx, "r1")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

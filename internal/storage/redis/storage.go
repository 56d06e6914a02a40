package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   newKeys(cfg.KeyPrefix),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) SaveParticipant(ctx context.Context, participant *model.Participant) error {
	data, err := json.Marshal(participant)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.keys.participant(participant.ID), data, s.cfg.ParticipantTTL).Err()
}

func (s *Storage) GetParticipant(ctx context.Context, id model.ParticipantID) (*model.Participant, error) {
	data, err := s.client.Get(ctx, s.keys.participant(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, err
	}

	var participant model.Participant
	if err := json.Unmarshal(data, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

func (s *Storage) DeleteParticipant(ctx context.Context, id model.ParticipantID) error {
	return s.client.Del(ctx, s.keys.participant(id)).Err()
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.RoomInfo) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	// Record and index are written together so ListRooms never sees a dangling ID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.room(room.ID), data, s.cfg.RoomTTL)
	pipe.SAdd(ctx, s.keys.roomIndex(), string(room.ID))
	pipe.Expire(ctx, s.keys.roomIndex(), s.cfg.RoomTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.RoomInfo, error) {
	data, err := s.client.Get(ctx, s.keys.room(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	var room model.RoomInfo
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keys.room(id))
	pipe.SRem(ctx, s.keys.roomIndex(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) RoomExists(ctx context.Context, id model.RoomID) (bool, error) {
	n, err := s.client.Exists(ctx, s.keys.room(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.RoomInfo, error) {
	ids, err := s.client.SMembers(ctx, s.keys.roomIndex()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.RoomInfo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.room(model.RoomID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]*model.RoomInfo, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// record expired but the index entry survived
			stale = append(stale, ids[i])
			continue
		}
		var room model.RoomInfo
		if err := json.Unmarshal([]byte(str), &room); err != nil {
			return nil, err
		}
		rooms = append(rooms, &room)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, s.keys.roomIndex(), stale...).Err()
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

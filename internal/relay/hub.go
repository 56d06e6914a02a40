package relay

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/guessnumber-go/internal/dependencies/clock"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/storage"
	"github.com/mcoot/guessnumber-go/internal/transport"
)

// Hub brokers connectivity between participants. It assigns IDs, keeps
// the room directory and relays SIGNAL payloads between room members.
// It never interprets game messages.
type Hub struct {
	cfg       Config
	clock     clock.Clock
	directory storage.Storage
	newID     IDGenerator
	logger    *slog.Logger

	// ctx ends when the hub closes; every participant's context derives from it
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	participants map[model.ParticipantID]*participant
	rooms        map[model.RoomID]*room
	wg           sync.WaitGroup
}

// Stats is a point-in-time count of relay state
type Stats struct {
	Participants int `json:"participants"`
	Rooms        int `json:"rooms"`
}

// NewHub creates a Hub. The directory receives best-effort presence updates.
func NewHub(cfg Config, clk clock.Clock, directory storage.Storage, newID IDGenerator, logger *slog.Logger) *Hub {
	if newID == nil {
		newID = UUIDGenerator()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		ctx:          ctx,
		cancel:       cancel,
		cfg:          cfg,
		clock:        clk,
		directory:    directory,
		newID:        newID,
		logger:       logger.With(slog.String("component", "relay")),
		participants: make(map[model.ParticipantID]*participant),
		rooms:        make(map[model.RoomID]*room),
	}
}

// Register admits a new channel. The participant gets a fresh ID, a room
// named after it with itself as sole member, and WELCOME and ROOM_MEMBERS
// frames. The channel's frames are then processed until it closes, ctx
// ends or the hub closes; the latter two disconnect the participant.
func (h *Hub) Register(ctx context.Context, ch transport.Channel) model.ParticipantID {
	p := h.addParticipant(ch)

	pctx, cancel := context.WithCancel(ctx)
	stopLink := context.AfterFunc(h.ctx, cancel)
	context.AfterFunc(pctx, p.close)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		p.writePump()
	}()

	r, _ := h.createRoom(model.RoomID(p.id), p)
	p.setRoom(r)

	p.deliver(&protocol.Welcome{ID: p.id})
	p.deliver(&protocol.RoomMembers{RoomID: r.id, Members: []model.ParticipantID{}})

	h.saveParticipant(&model.Participant{ID: p.id, ConnectedAt: p.connectedAt})
	p.logger.Info("participant registered", slog.String("remote_addr", ch.RemoteAddr()))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		defer stopLink()
		h.readPump(pctx, p)
	}()

	return p.id
}

func (h *Hub) addParticipant(ch transport.Channel) *participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		id := h.newID()
		if _, taken := h.participants[id]; taken {
			continue
		}
		if _, taken := h.rooms[model.RoomID(id)]; taken {
			continue
		}
		p := newParticipant(id, ch, h.cfg.SendBuffer, h.clock.Now(), h.logger)
		h.participants[id] = p
		return p
	}
}

// readPump decodes frames from a participant until its channel fails.
// Room commands made on the participant's behalf are bounded by ctx.
func (h *Hub) readPump(ctx context.Context, p *participant) {
	// leaving must reach the room even when ctx has ended
	defer h.unregister(context.WithoutCancel(ctx), p)

	for {
		data, err := p.ch.Read()
		if err != nil {
			if !errors.Is(err, model.ErrChannelClosed) && !p.isClosed() {
				p.logger.Debug("read failed", slog.String("error", err.Error()))
			}
			return
		}
		h.handleFrame(ctx, p, data)
	}
}

func (h *Hub) handleFrame(ctx context.Context, p *participant, data []byte) {
	msg, err := protocol.DecodeRelay(data)
	if err != nil {
		p.logger.Warn("rejected frame", slog.String("error", err.Error()))
		p.deliver(protocol.NewError(err))
		return
	}

	switch m := msg.(type) {
	case *protocol.Join:
		// Join reports its own failures to the participant
		_ = h.Join(ctx, p.id, m.RoomID)
	case *protocol.Signal:
		if err := h.Route(ctx, p.id, m.Target, m.Data); err != nil {
			p.logger.Debug("signal dropped", slog.String("error", err.Error()))
		}
	case *protocol.Evict:
		if err := h.Evict(ctx, p.id, m.Target); err != nil {
			p.deliver(protocol.NewError(err))
		}
	default:
		err := fmt.Errorf("%w: %s is relay-only", model.ErrProtocolViolation, msg.Kind())
		p.logger.Warn("rejected frame", slog.String("error", err.Error()))
		p.deliver(protocol.NewError(err))
	}
}

// Join moves a participant into an existing room. The only room that may
// be recreated by joining is the participant's own.
func (h *Hub) Join(ctx context.Context, id model.ParticipantID, roomID model.RoomID) error {
	p := h.getParticipant(id)
	if p == nil {
		return model.ErrParticipantNotFound
	}
	p.joinMu.Lock()
	defer p.joinMu.Unlock()

	err := h.joinLocked(ctx, p, roomID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrRoomFull):
		p.deliver(protocol.NewError(err))
		h.clock.AfterFunc(h.cfg.RejectGrace, p.close)
	case errors.Is(err, model.ErrRoomNotFound):
		p.deliver(protocol.NewError(err))
	}
	p.logger.Info("join failed", slog.String("room", string(roomID)), slog.String("error", err.Error()))
	return err
}

func (h *Hub) joinLocked(ctx context.Context, p *participant, roomID model.RoomID) error {
	previous := p.currentRoom()
	if previous != nil && previous.id == roomID {
		return previous.join(ctx, p)
	}

	target, err := h.enterRoom(ctx, p, roomID)
	if err != nil {
		return err
	}
	p.setRoom(target)

	if previous != nil {
		previous.leave(ctx, p)
	}
	return nil
}

// enterRoom adds p to roomID, recreating it when it is p's own room
func (h *Hub) enterRoom(ctx context.Context, p *participant, roomID model.RoomID) (*room, error) {
	own := roomID == model.RoomID(p.id)
	for {
		r := h.getRoom(roomID)
		if r == nil {
			if !own {
				return nil, model.ErrRoomNotFound
			}
			r, created := h.createRoom(roomID, p)
			if created {
				p.deliver(&protocol.RoomMembers{RoomID: roomID, Members: []model.ParticipantID{}})
				return r, nil
			}
			continue
		}

		err := r.join(ctx, p)
		if errors.Is(err, model.ErrRoomNotFound) && own {
			// lost a race with the room shutting down; recreate it
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Leave removes a participant from its current room. Idempotent.
func (h *Hub) Leave(ctx context.Context, id model.ParticipantID) error {
	p := h.getParticipant(id)
	if p == nil {
		return model.ErrParticipantNotFound
	}
	p.joinMu.Lock()
	defer p.joinMu.Unlock()

	h.leaveLocked(ctx, p)
	return nil
}

func (h *Hub) leaveLocked(ctx context.Context, p *participant) {
	r := p.currentRoom()
	if r == nil {
		return
	}
	p.setRoom(nil)
	r.leave(ctx, p)
}

// Route relays a game payload from one member of a room to another, or to
// every other member when target is empty. Payloads for participants
// outside the sender's room are dropped.
func (h *Hub) Route(ctx context.Context, from, target model.ParticipantID, data []byte) error {
	p := h.getParticipant(from)
	if p == nil {
		return model.ErrParticipantNotFound
	}
	r := p.currentRoom()
	if r == nil {
		return model.ErrNotInRoom
	}

	frame, err := protocol.Encode(&protocol.Signal{Target: target, From: from, Data: data})
	if err != nil {
		return err
	}
	return r.route(ctx, from, target, frame)
}

// Evict disconnects a member of the requester's own room. Only the
// participant a room is named after may evict from it.
func (h *Hub) Evict(ctx context.Context, requester, target model.ParticipantID) error {
	p := h.getParticipant(requester)
	if p == nil {
		return model.ErrParticipantNotFound
	}
	r := p.currentRoom()
	if r == nil || r.id != model.RoomID(requester) {
		return model.ErrNotRoomOwner
	}
	return r.evict(ctx, target)
}

// Members returns the current members of a room in join order
func (h *Hub) Members(ctx context.Context, roomID model.RoomID) ([]model.ParticipantID, error) {
	r := h.getRoom(roomID)
	if r == nil {
		return nil, model.ErrRoomNotFound
	}
	return r.memberList(ctx)
}

// RoomInfo looks a room up in the presence directory
func (h *Hub) RoomInfo(ctx context.Context, roomID model.RoomID) (*model.RoomInfo, error) {
	if h.directory == nil {
		members, err := h.Members(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return &model.RoomInfo{ID: roomID, Members: members}, nil
	}
	return h.directory.GetRoom(ctx, roomID)
}

// RoomExists reports whether the directory knows the room
func (h *Hub) RoomExists(ctx context.Context, roomID model.RoomID) (bool, error) {
	if h.directory == nil {
		return h.getRoom(roomID) != nil, nil
	}
	return h.directory.RoomExists(ctx, roomID)
}

// Rooms lists every live room, ordered by ID
func (h *Hub) Rooms(ctx context.Context) ([]*model.RoomInfo, error) {
	if h.directory != nil {
		return h.directory.ListRooms(ctx)
	}

	h.mu.RLock()
	live := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		live = append(live, r)
	}
	h.mu.RUnlock()

	out := make([]*model.RoomInfo, 0, len(live))
	for _, r := range live {
		members, err := r.memberList(ctx)
		if errors.Is(err, model.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &model.RoomInfo{ID: r.id, Members: members})
	}
	slices.SortFunc(out, func(a, b *model.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Participant looks a connected participant up in the presence directory
func (h *Hub) Participant(ctx context.Context, id model.ParticipantID) (*model.Participant, error) {
	if h.directory == nil {
		p := h.getParticipant(id)
		if p == nil {
			return nil, model.ErrParticipantNotFound
		}
		return &model.Participant{ID: p.id, ConnectedAt: p.connectedAt}, nil
	}
	return h.directory.GetParticipant(ctx, id)
}

// Stats returns participant and room counts
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Participants: len(h.participants), Rooms: len(h.rooms)}
}

// Close disconnects every participant and waits for their pumps to exit
func (h *Hub) Close(ctx context.Context) error {
	h.cancel()

	h.mu.RLock()
	all := make([]*participant, 0, len(h.participants))
	for _, p := range h.participants {
		all = append(all, p)
	}
	h.mu.RUnlock()

	for _, p := range all {
		p.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info("relay closed", slog.Int("disconnected", len(all)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unregister runs when a participant's channel is gone
func (h *Hub) unregister(ctx context.Context, p *participant) {
	p.joinMu.Lock()
	h.leaveLocked(ctx, p)
	p.joinMu.Unlock()

	p.close()
	_ = p.ch.Close()

	h.mu.Lock()
	delete(h.participants, p.id)
	count := len(h.participants)
	h.mu.Unlock()

	h.deleteParticipant(p.id)
	p.logger.Info("participant unregistered",
		slog.Duration("connection_duration", h.clock.Now().Sub(p.connectedAt)),
		slog.Int("total_participants", count))
}

func (h *Hub) getParticipant(id model.ParticipantID) *participant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.participants[id]
}

func (h *Hub) getRoom(id model.RoomID) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[id]
}

// createRoom starts a room with first as its sole member. If the room
// already exists it is returned with created=false.
func (h *Hub) createRoom(id model.RoomID, first *participant) (*room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r, false
	}
	r := newRoom(id, h, first)
	h.rooms[id] = r
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		r.run()
	}()
	return r, true
}

// removeRoom drops a room from the directory if it is still the live one
func (h *Hub) removeRoom(r *room) {
	h.mu.Lock()
	if h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
	h.mu.Unlock()

	if h.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.DirectoryTimeout)
	defer cancel()
	if err := h.directory.DeleteRoom(ctx, r.id); err != nil {
		h.logger.Warn("failed to remove room from directory", slog.String("room", string(r.id)), slog.String("error", err.Error()))
	}
}

func (h *Hub) saveRoom(info *model.RoomInfo) {
	if h.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.DirectoryTimeout)
	defer cancel()
	if err := h.directory.SaveRoom(ctx, info); err != nil {
		h.logger.Warn("failed to publish room", slog.String("room", string(info.ID)), slog.String("error", err.Error()))
	}
}

func (h *Hub) saveParticipant(info *model.Participant) {
	if h.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.DirectoryTimeout)
	defer cancel()
	if err := h.directory.SaveParticipant(ctx, info); err != nil {
		h.logger.Warn("failed to publish participant", slog.String("participant_id", string(info.ID)), slog.String("error", err.Error()))
	}
}

func (h *Hub) deleteParticipant(id model.ParticipantID) {
	if h.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.DirectoryTimeout)
	defer cancel()
	if err := h.directory.DeleteParticipant(ctx, id); err != nil {
		h.logger.Warn("failed to remove participant", slog.String("participant_id", string(id)), slog.String("error", err.Error()))
	}
}

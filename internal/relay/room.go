package relay

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
)

// Commands processed by a room's event loop
type (
	joinCmd struct {
		p     *participant
		reply chan error
	}
	leaveCmd struct {
		p     *participant
		reply chan struct{}
	}
	routeCmd struct {
		from   model.ParticipantID
		target model.ParticipantID
		data   []byte
	}
	evictCmd struct {
		target model.ParticipantID
		reply  chan error
	}
	membersCmd struct {
		reply chan []model.ParticipantID
	}
)

// room owns the member set of one room. All membership changes and
// message fan-out happen on its goroutine.
type room struct {
	id        model.RoomID
	hub       *Hub
	members   []*participant // join order
	createdAt time.Time
	logger    *slog.Logger

	inbox chan any
	done  chan struct{}
}

func newRoom(id model.RoomID, hub *Hub, first *participant) *room {
	return &room{
		id:        id,
		hub:       hub,
		members:   []*participant{first},
		createdAt: hub.clock.Now(),
		logger:    hub.logger.With(slog.String("room", string(id))),
		inbox:     make(chan any),
		done:      make(chan struct{}),
	}
}

// run is the room's event loop. It exits once the last member leaves.
func (r *room) run() {
	r.logger.Info("room opened")
	r.publish()
	defer close(r.done)

	for cmd := range r.inbox {
		switch c := cmd.(type) {
		case joinCmd:
			c.reply <- r.handleJoin(c.p)
		case leaveCmd:
			r.handleLeave(c.p)
			c.reply <- struct{}{}
		case routeCmd:
			r.handleRoute(c)
		case evictCmd:
			c.reply <- r.handleEvict(c.target)
		case membersCmd:
			c.reply <- r.memberIDs()
		}

		if len(r.members) == 0 {
			r.hub.removeRoom(r)
			r.logger.Info("room closed")
			return
		}
	}
}

// submit hands a command to the event loop. Fails with ErrRoomNotFound if
// the room has already shut down.
func (r *room) submit(ctx context.Context, cmd any) error {
	select {
	case r.inbox <- cmd:
		return nil
	case <-r.done:
		return model.ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *room) join(ctx context.Context, p *participant) error {
	reply := make(chan error, 1)
	if err := r.submit(ctx, joinCmd{p: p, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (r *room) leave(ctx context.Context, p *participant) {
	reply := make(chan struct{}, 1)
	if err := r.submit(ctx, leaveCmd{p: p, reply: reply}); err != nil {
		return
	}
	<-reply
}

func (r *room) route(ctx context.Context, from, target model.ParticipantID, data []byte) error {
	return r.submit(ctx, routeCmd{from: from, target: target, data: data})
}

func (r *room) evict(ctx context.Context, target model.ParticipantID) error {
	reply := make(chan error, 1)
	if err := r.submit(ctx, evictCmd{target: target, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (r *room) memberList(ctx context.Context) ([]model.ParticipantID, error) {
	reply := make(chan []model.ParticipantID, 1)
	if err := r.submit(ctx, membersCmd{reply: reply}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

func (r *room) handleJoin(p *participant) error {
	if r.indexOf(p.id) >= 0 {
		p.deliver(&protocol.RoomMembers{RoomID: r.id, Members: r.othersThan(p.id)})
		return nil
	}
	if p.id != r.id.HostID() && r.guestCount() >= model.MaxPlayers-1 {
		r.logger.Info("join rejected, room full",
			slog.String("participant_id", string(p.id)),
			slog.Int("members", len(r.members)))
		return model.ErrRoomFull
	}

	others := r.memberIDs()
	for _, m := range r.members {
		m.deliver(&protocol.PeerJoined{PeerID: p.id})
	}
	r.members = append(r.members, p)
	p.deliver(&protocol.RoomMembers{RoomID: r.id, Members: others})

	r.logger.Info("participant joined room",
		slog.String("participant_id", string(p.id)),
		slog.Int("members", len(r.members)))
	r.publish()
	return nil
}

func (r *room) handleLeave(p *participant) {
	idx := r.indexOf(p.id)
	if idx < 0 {
		return
	}
	r.members = slices.Delete(r.members, idx, idx+1)
	for _, m := range r.members {
		m.deliver(&protocol.PeerLeft{PeerID: p.id})
	}

	r.logger.Info("participant left room",
		slog.String("participant_id", string(p.id)),
		slog.Int("members", len(r.members)))
	if len(r.members) > 0 {
		r.publish()
	}
}

// handleRoute delivers a SIGNAL. A target outside the room is dropped;
// no target means every member except the sender.
func (r *room) handleRoute(c routeCmd) {
	if r.indexOf(c.from) < 0 {
		r.logger.Debug("route from non-member dropped", slog.String("from", string(c.from)))
		return
	}
	if c.target != "" {
		idx := r.indexOf(c.target)
		if idx < 0 {
			r.logger.Debug("signal target not in room",
				slog.String("from", string(c.from)),
				slog.String("target", string(c.target)))
			return
		}
		r.members[idx].deliverRaw(c.data)
		return
	}
	for _, m := range r.members {
		if m.id != c.from {
			m.deliverRaw(c.data)
		}
	}
}

func (r *room) handleEvict(target model.ParticipantID) error {
	idx := r.indexOf(target)
	if idx < 0 || target == r.id.HostID() {
		return model.ErrNotInRoom
	}
	r.logger.Info("evicting participant", slog.String("participant_id", string(target)))
	// Closing the channel makes the read pump leave the room through the
	// normal disconnect path, so PEER_LEFT is sent exactly once.
	r.members[idx].close()
	return nil
}

func (r *room) indexOf(id model.ParticipantID) int {
	return slices.IndexFunc(r.members, func(m *participant) bool { return m.id == id })
}

func (r *room) memberIDs() []model.ParticipantID {
	ids := make([]model.ParticipantID, 0, len(r.members))
	for _, m := range r.members {
		ids = append(ids, m.id)
	}
	return ids
}

func (r *room) othersThan(id model.ParticipantID) []model.ParticipantID {
	ids := make([]model.ParticipantID, 0, len(r.members))
	for _, m := range r.members {
		if m.id != id {
			ids = append(ids, m.id)
		}
	}
	return ids
}

func (r *room) guestCount() int {
	n := 0
	for _, m := range r.members {
		if m.id != r.id.HostID() {
			n++
		}
	}
	return n
}

// publish mirrors the member list into the presence directory
func (r *room) publish() {
	r.hub.saveRoom(&model.RoomInfo{
		ID:        r.id,
		Members:   r.memberIDs(),
		CreatedAt: r.createdAt,
		UpdatedAt: r.hub.clock.Now(),
	})
}

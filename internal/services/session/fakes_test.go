package session

import (
	"slices"
	"sync"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
)

// envelope is a queued relay event
type envelope struct {
	from   model.ParticipantID
	target model.ParticipantID
	msg    protocol.Message
	left   bool // relay disconnect of from
}

// fakeRelay queues game messages between sessions and delivers them on
// flush, so no session is ever re-entered while holding its own lock.
// Payloads go through the wire codec on the way.
type fakeRelay struct {
	mu       sync.Mutex
	sessions map[model.ParticipantID]*Session
	room     []model.ParticipantID
	queue    []envelope
	sent     []envelope
	evicted  []model.ParticipantID
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{sessions: make(map[model.ParticipantID]*Session)}
}

type fakeTransport struct {
	relay *fakeRelay
	id    model.ParticipantID
}

func (t *fakeTransport) SelfID() model.ParticipantID { return t.id }

func (t *fakeTransport) Send(target model.ParticipantID, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	decoded, err := protocol.DecodeGame(data)
	if err != nil {
		return err
	}
	t.relay.mu.Lock()
	defer t.relay.mu.Unlock()
	env := envelope{from: t.id, target: target, msg: decoded}
	t.relay.queue = append(t.relay.queue, env)
	t.relay.sent = append(t.relay.sent, env)
	return nil
}

func (t *fakeTransport) Evict(target model.ParticipantID) error {
	t.relay.mu.Lock()
	defer t.relay.mu.Unlock()
	if !slices.Contains(t.relay.room, target) {
		return model.ErrNotInRoom
	}
	t.relay.evicted = append(t.relay.evicted, target)
	t.relay.queue = append(t.relay.queue, envelope{from: target, left: true})
	return nil
}

// join adds a session to the shared room the way the relay would
func (r *fakeRelay) join(s *Session) {
	r.mu.Lock()
	existing := slices.Clone(r.room)
	r.room = append(r.room, s.self)
	r.sessions[s.self] = s
	roomID := model.RoomID(r.room[0])
	r.mu.Unlock()

	s.HandleMembers(roomID, existing)
	for _, id := range existing {
		r.sessions[id].HandlePeerJoined(s.self)
	}
}

// disconnect drops a member as if its channel closed
func (r *fakeRelay) disconnect(id model.ParticipantID) {
	r.mu.Lock()
	r.queue = append(r.queue, envelope{from: id, left: true})
	r.mu.Unlock()
	r.flush()
}

// flush delivers queued events until the network is quiet
func (r *fakeRelay) flush() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		env := r.queue[0]
		r.queue = r.queue[1:]
		members := slices.Clone(r.room)
		r.mu.Unlock()

		if env.left {
			r.removeMember(env.from, members)
			continue
		}
		if !slices.Contains(members, env.from) {
			continue
		}
		if env.target != "" {
			if slices.Contains(members, env.target) {
				_ = r.sessions[env.target].HandleSignal(env.from, env.msg)
			}
			continue
		}
		for _, id := range members {
			if id != env.from {
				_ = r.sessions[id].HandleSignal(env.from, env.msg)
			}
		}
	}
}

func (r *fakeRelay) removeMember(id model.ParticipantID, members []model.ParticipantID) {
	if !slices.Contains(members, id) {
		return
	}
	r.mu.Lock()
	r.room = slices.DeleteFunc(r.room, func(m model.ParticipantID) bool { return m == id })
	remaining := slices.Clone(r.room)
	r.mu.Unlock()

	r.sessions[id].HandleDisconnected(model.ErrChannelClosed)
	for _, m := range remaining {
		r.sessions[m].HandlePeerLeft(id)
	}
}

// sentOfType returns every message of the given type sent so far
func (r *fakeRelay) sentOfType(kind protocol.Type) []envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []envelope
	for _, env := range r.sent {
		if env.msg.Kind() == kind {
			out = append(out, env)
		}
	}
	return out
}

func (r *fakeRelay) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

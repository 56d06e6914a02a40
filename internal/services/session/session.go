package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/guessnumber-go/internal/dependencies/clock"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
	"github.com/mcoot/guessnumber-go/internal/services/scoring"
)

// Transport is the relay connection a session talks through
type Transport interface {
	// SelfID is the relay-assigned ID of this participant
	SelfID() model.ParticipantID

	// Send delivers a game message to one room member, or to every other
	// member when target is empty
	Send(target model.ParticipantID, msg protocol.Message) error

	// Evict asks the relay to disconnect a member of our own room
	Evict(target model.ParticipantID) error
}

// Mode selects between the single-player puzzle and relay play
type Mode string

const (
	ModeSolo        Mode = "solo"
	ModeMultiplayer Mode = "multiplayer"
)

// Config holds session timing and identity settings
type Config struct {
	Mode     Mode
	Username string

	// KickGrace is the delay between sending KICK and evicting the target
	KickGrace time.Duration

	// ErrorTTL is how long a transient error stays visible
	ErrorTTL time.Duration

	// HandshakeTimeout bounds a guest's wait for the host's acknowledgement
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		Mode:             ModeMultiplayer,
		KickGrace:        300 * time.Millisecond,
		ErrorTTL:         2 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}
}

// Session is one participant's view of a game. In the room it owns, the
// session is the host and is the sole writer of turn order and phase; in
// any other room it applies what the host sends. All intents and inbound
// events are serialized by one mutex.
type Session struct {
	cfg       Config
	self      model.ParticipantID
	transport Transport
	scoring   scoring.ServiceInterface
	clock     clock.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	closed  bool
	changed chan struct{} // closed and replaced on every state change

	// Room membership
	inRoom  bool
	host    model.ParticipantID
	members []model.ParticipantID // other members, join order
	names   map[model.ParticipantID]string

	// Round state
	phase      model.Phase
	game       model.GameConfig
	secret     string // the secret this participant is guessing
	ownSecret  string // duel: the secret set for the opponent
	turnOrder  []model.ParticipantID
	turnIndex  int
	awaiting   bool // race guest: guessed, waiting for the host's TURN_CHANGE
	opponent   model.ParticipantID
	history    []model.GuessResult
	peers      map[model.ParticipantID]*model.PeerStatus
	winner     model.ParticipantID
	revealed   string
	restartReq bool

	// Handshake
	handshakeSent bool
	hostAcked     bool

	// Notices
	errMsg     string
	errAt      time.Time
	errTimer   clock.Timer
	kicked     bool
	kickReason string
	kickTimers map[model.ParticipantID]clock.Timer

	observers []chan model.SessionSnapshot
}

// New creates a session. transport may be nil in solo mode.
func New(cfg Config, transport Transport, scoringService scoring.ServiceInterface, clk clock.Clock, logger *slog.Logger) *Session {
	var self model.ParticipantID
	if transport != nil {
		self = transport.SelfID()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMultiplayer
	}
	return &Session{
		cfg:        cfg,
		self:       self,
		transport:  transport,
		scoring:    scoringService,
		clock:      clk,
		logger:     logger.With(slog.String("component", "session"), slog.String("participant_id", string(self))),
		changed:    make(chan struct{}),
		names:      make(map[model.ParticipantID]string),
		phase:      model.PhaseLobby,
		game:       model.DefaultGameConfig(),
		peers:      make(map[model.ParticipantID]*model.PeerStatus),
		kickTimers: make(map[model.ParticipantID]clock.Timer),
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that always holds the latest snapshot.
// Intermediate snapshots may be skipped by slow readers.
func (s *Session) Subscribe() (<-chan model.SessionSnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan model.SessionSnapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.snapshotLocked()
	s.observers = append(s.observers, ch)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if i := slices.Index(s.observers, ch); i >= 0 {
			s.observers = slices.Delete(s.observers, i, i+1)
			close(ch)
		}
	}
	return ch, cancel
}

// Close stops pending timers and releases observers
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	for _, ch := range s.observers {
		close(ch)
	}
	s.observers = nil
	close(s.changed)
}

func (s *Session) stopTimersLocked() {
	s.stopKickTimersLocked()
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
}

// Membership events from the relay

// HandleMembers applies a ROOM_MEMBERS frame. Entering our own room makes
// this session the host; entering any other room makes it a guest.
func (s *Session) HandleMembers(roomID model.RoomID, members []model.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.stopKickTimersLocked()
	s.inRoom = true
	s.host = roomID.HostID()
	s.members = slices.DeleteFunc(slices.Clone(members), func(id model.ParticipantID) bool { return id == s.self })
	s.kicked = false
	s.kickReason = ""
	s.handshakeSent = false
	s.hostAcked = s.isHostLocked()
	s.peers = make(map[model.ParticipantID]*model.PeerStatus)
	s.resetRoundLocked()
	s.phase = model.PhaseLobby

	s.logger.Info("entered room",
		slog.String("room", string(roomID)),
		slog.Bool("host", s.isHostLocked()),
		slog.Int("members", len(s.members)))
	s.notifyLocked()
}

// HandlePeerJoined records a new room member. The host introduces itself,
// and a joiner arriving mid-race receives the round so it can follow along.
func (s *Session) HandlePeerJoined(id model.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.inRoom || id == s.self {
		return
	}
	if !slices.Contains(s.members, id) {
		s.members = append(s.members, id)
	}

	if s.isHostLocked() {
		if s.cfg.Username != "" {
			s.sendLocked(id, &protocol.PlayerInfo{Username: s.cfg.Username})
		}
		if s.phase == model.PhasePlaying && s.game.PlayStyle == model.PlayStyleRace {
			s.sendLocked(id, s.gameStartLocked())
		}
	}
	s.notifyLocked()
}

// HandlePeerLeft applies a PEER_LEFT frame
func (s *Session) HandlePeerLeft(id model.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.inRoom {
		return
	}

	s.members = slices.DeleteFunc(s.members, func(m model.ParticipantID) bool { return m == id })
	delete(s.peers, id)
	if t, ok := s.kickTimers[id]; ok {
		t.Stop()
		delete(s.kickTimers, id)
	}

	switch {
	case id == s.host && !s.isHostLocked():
		s.leaveRoomLocked(model.ErrPeerDisconnected)
	case s.isHostLocked():
		s.repairAfterDepartureLocked(id)
	}
	s.notifyLocked()
}

// HandleRelayError applies an ERROR frame from the relay
func (s *Session) HandleRelayError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.logger.Warn("relay error", slog.String("error", err.Error()))
	s.setErrorLocked(err)
	s.notifyLocked()
}

// HandleDisconnected is called once the relay connection is gone
func (s *Session) HandleDisconnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err == nil {
		err = model.ErrChannelClosed
	}
	s.leaveRoomLocked(fmt.Errorf("%w: %v", model.ErrPeerDisconnected, err))
	s.notifyLocked()
}

// leaveRoomLocked drops back to an unconnected lobby. A pending kick
// notice takes precedence over the disconnect that follows it.
func (s *Session) leaveRoomLocked(cause error) {
	s.stopKickTimersLocked()
	s.inRoom = false
	s.members = nil
	s.peers = make(map[model.ParticipantID]*model.PeerStatus)
	s.resetRoundLocked()
	s.phase = model.PhaseLobby

	if s.kicked {
		s.logger.Info("left room after kick", slog.String("reason", s.kickReason))
		return
	}
	s.logger.Info("left room", slog.String("cause", cause.Error()))
	s.setErrorLocked(cause)
}

func (s *Session) stopKickTimersLocked() {
	for id, t := range s.kickTimers {
		t.Stop()
		delete(s.kickTimers, id)
	}
}

func (s *Session) isHostLocked() bool {
	return s.inRoom && s.host == s.self
}

// Transient errors

func (s *Session) setErrorLocked(err error) {
	s.errMsg = err.Error()
	s.errAt = s.clock.Now()
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.errTimer = s.clock.AfterFunc(s.cfg.ErrorTTL, s.expireError)
}

func (s *Session) expireError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.errMsg == "" {
		return
	}
	if s.clock.Now().Sub(s.errAt) >= s.cfg.ErrorTTL {
		s.errMsg = ""
		s.errTimer = nil
		s.notifyLocked()
	}
}

// fail records err as the visible error and returns it
func (s *Session) failLocked(err error) error {
	s.setErrorLocked(err)
	s.notifyLocked()
	return err
}

// Outbound messages

func (s *Session) sendLocked(target model.ParticipantID, msg protocol.Message) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Send(target, msg); err != nil {
		s.logger.Warn("failed to send game message",
			slog.String("type", string(msg.Kind())),
			slog.String("target", string(target)),
			slog.String("error", err.Error()))
	}
}

func (s *Session) broadcastLocked(msg protocol.Message) {
	s.sendLocked("", msg)
}

// Observers

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})

	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// waitUntil blocks until cond holds, the session closes or ctx ends.
// cond is evaluated with the lock held.
func (s *Session) waitUntil(ctx context.Context, cond func() bool) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return model.ErrChannelClosed
		}
		if cond() {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return model.ErrConnectTimeout
			}
			return ctx.Err()
		}
	}
}

func (s *Session) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		Self:         s.self,
		Host:         s.host,
		IsHost:       s.isHostLocked(),
		Phase:        s.phase,
		Config:       s.game,
		Members:      slices.Clone(s.members),
		TurnOrder:    slices.Clone(s.turnOrder),
		CurrentTurn:  s.currentTurnLocked(),
		History:      slices.Clone(s.history),
		Winner:       s.winner,
		Secret:       s.revealed,
		KickReason:   s.kickReason,
		RestartAsked: s.restartReq,
		UpdatedAt:    s.clock.Now(),
	}
	if s.game.PlayStyle == model.PlayStyleDuel && s.ownSecret != "" && !s.phase.IsTerminal() {
		snap.Secret = s.ownSecret
	}
	if s.errMsg != "" && s.clock.Now().Sub(s.errAt) < s.cfg.ErrorTTL {
		snap.Error = s.errMsg
	}
	for _, id := range s.members {
		status := model.PeerStatus{ID: id, Username: s.names[id]}
		if p, ok := s.peers[id]; ok {
			status.GuessCount = p.GuessCount
			status.LastExact = p.LastExact
			status.LastTotal = p.LastTotal
			status.Ready = p.Ready
		}
		snap.Peers = append(snap.Peers, status)
	}
	return snap
}

func (s *Session) peerLocked(id model.ParticipantID) *model.PeerStatus {
	p, ok := s.peers[id]
	if !ok {
		p = &model.PeerStatus{ID: id}
		s.peers[id] = p
	}
	return p
}

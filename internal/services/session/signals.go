package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
)

// HandleSignal applies a game message relayed from another room member.
// Messages that do not fit the current phase or the sender's role are
// discarded and reported as ErrProtocolViolation; they never change state.
func (s *Session) HandleSignal(from model.ParticipantID, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	if !s.inRoom {
		return s.violationLocked(from, msg, "not in a room yet", false)
	}

	var err error
	switch m := msg.(type) {
	case *protocol.Handshake:
		s.handleHandshakeLocked(from, m)
	case *protocol.PlayerInfo:
		s.names[from] = m.Username
	case *protocol.GameStart:
		err = s.handleGameStartLocked(from, m)
	case *protocol.DuelInit:
		err = s.handleDuelInitLocked(from, m)
	case *protocol.DuelReady:
		err = s.handleDuelReadyLocked(from, m)
	case *protocol.GuessUpdate:
		err = s.handleGuessUpdateLocked(from, m)
	case *protocol.TurnChange:
		err = s.handleTurnChangeLocked(from, m)
	case *protocol.GameOver:
		err = s.handleGameOverLocked(from, m)
	case *protocol.Kick:
		err = s.handleKickLocked(from, m)
	case *protocol.RestartRequest:
		err = s.handleRestartRequestLocked(from)
	case *protocol.RestartAccept:
		err = s.handleRestartAcceptLocked(from)
	case *protocol.GameError:
		s.logger.Info("peer reported error", slog.String("from", string(from)), slog.String("message", m.Message))
		s.setErrorLocked(errors.New(m.Message))
	default:
		err = s.violationLocked(from, msg, "not a game message", false)
	}

	s.notifyLocked()
	return err
}

// violationLocked logs a rejected message. The host also tells the sender,
// since a guest acting on stale state would otherwise never find out.
func (s *Session) violationLocked(from model.ParticipantID, msg protocol.Message, reason string, reply bool) error {
	err := fmt.Errorf("%w: %s from %s: %s", model.ErrProtocolViolation, msg.Kind(), from, reason)
	s.logger.Warn("discarded game message",
		slog.String("type", string(msg.Kind())),
		slog.String("from", string(from)),
		slog.String("reason", reason))
	if reply && s.isHostLocked() {
		s.sendLocked(from, &protocol.GameError{Message: reason})
	}
	return err
}

// fromHostLocked rejects host-only messages from anyone else
func (s *Session) fromHostLocked(from model.ParticipantID, msg protocol.Message) error {
	if s.isHostLocked() || from != s.host {
		return s.violationLocked(from, msg, "only the host may send this", false)
	}
	return nil
}

// Handshake

// handleHandshakeLocked answers a request with exactly one ack. Acks are
// never answered.
func (s *Session) handleHandshakeLocked(from model.ParticipantID, m *protocol.Handshake) {
	if m.Ack {
		if from == s.host {
			s.hostAcked = true
		}
		return
	}
	s.sendLocked(from, &protocol.Handshake{Ack: true})
	if s.isHostLocked() && s.cfg.Username != "" {
		s.sendLocked(from, &protocol.PlayerInfo{Username: s.cfg.Username})
	}
}

// Handshake introduces a guest to its host and waits for the host's
// acknowledgement. Bounded by HandshakeTimeout; fails with
// ErrConnectTimeout. Returns immediately for the host itself.
func (s *Session) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	err := s.waitUntil(ctx, func() bool {
		if !s.inRoom || s.isHostLocked() {
			return s.isHostLocked()
		}
		if !s.handshakeSent {
			s.handshakeSent = true
			s.sendLocked(s.host, &protocol.Handshake{Ack: false})
			if s.cfg.Username != "" {
				s.sendLocked(s.host, &protocol.PlayerInfo{Username: s.cfg.Username})
			}
		}
		return s.hostAcked
	})
	if err != nil {
		s.mu.Lock()
		if !s.closed {
			s.setErrorLocked(err)
			s.notifyLocked()
		}
		s.mu.Unlock()
	}
	return err
}

// Race

func (s *Session) handleGameStartLocked(from model.ParticipantID, m *protocol.GameStart) error {
	if err := s.fromHostLocked(from, m); err != nil {
		return err
	}
	cfg := model.GameConfig{
		Digits:          m.Digits,
		MatchStrategy:   m.MatchStrategy,
		PlayStyle:       model.PlayStyleRace,
		AllowDuplicates: true,
	}
	if err := cfg.Validate(); err != nil {
		return s.violationLocked(from, m, err.Error(), false)
	}
	if err := s.scoring.ValidateGuess(m.Secret, m.Digits); err != nil {
		return s.violationLocked(from, m, "invalid secret: "+err.Error(), false)
	}

	s.game = cfg
	s.resetRoundLocked()
	s.secret = m.Secret
	s.turnOrder = slices.Clone(m.TurnOrder)
	s.turnIndex = max(0, slices.Index(s.turnOrder, m.CurrentTurn))
	s.phase = model.PhasePlaying
	s.logger.Info("race started by host", slog.Int("digits", m.Digits))
	return nil
}

func (s *Session) handleTurnChangeLocked(from model.ParticipantID, m *protocol.TurnChange) error {
	if err := s.fromHostLocked(from, m); err != nil {
		return err
	}
	if s.phase != model.PhasePlaying {
		return s.violationLocked(from, m, "no race in progress", false)
	}
	if m.TurnOrder != nil {
		s.turnOrder = slices.Clone(m.TurnOrder)
	}
	idx := slices.Index(s.turnOrder, m.CurrentTurn)
	if idx < 0 {
		return s.violationLocked(from, m, "turn holder not in turn order", false)
	}
	s.turnIndex = idx
	s.awaiting = false
	return nil
}

// handleGuessUpdateLocked records a peer's progress. The host advances the
// race only for a non-winning guess by the current turn holder.
func (s *Session) handleGuessUpdateLocked(from model.ParticipantID, m *protocol.GuessUpdate) error {
	if s.phase != model.PhasePlaying {
		return s.violationLocked(from, m, "no round in progress", true)
	}
	if s.isHostLocked() && len(s.turnOrder) > 0 && s.currentTurnLocked() != from {
		return s.violationLocked(from, m, "guess out of turn", true)
	}
	if s.game.PlayStyle == model.PlayStyleDuel && from != s.opponent {
		return s.violationLocked(from, m, "not the duel opponent", true)
	}

	peer := s.peerLocked(from)
	peer.GuessCount = m.GuessCount
	peer.LastExact = m.LastResult.Exact
	peer.LastTotal = m.LastResult.Total

	if s.isHostLocked() && len(s.turnOrder) > 0 && m.LastResult.Exact != s.game.Digits {
		s.advanceTurnLocked()
	}
	return nil
}

// handleGameOverLocked accepts a win claimed by its sender only. The host
// further requires the claim to come from the race's turn holder or the
// duel opponent.
func (s *Session) handleGameOverLocked(from model.ParticipantID, m *protocol.GameOver) error {
	if s.phase != model.PhasePlaying {
		return s.violationLocked(from, m, "no round in progress", false)
	}
	if m.Winner != "" && m.Winner != from {
		return s.violationLocked(from, m, "win claimed for another member", true)
	}
	switch {
	case s.game.PlayStyle == model.PlayStyleDuel && from != s.opponent:
		return s.violationLocked(from, m, "not the duel opponent", true)
	case s.isHostLocked() && len(s.turnOrder) > 0 && s.currentTurnLocked() != from:
		return s.violationLocked(from, m, "game over out of turn", true)
	}
	s.phase = model.PhaseLost
	s.winner = from
	s.revealed = s.secret
	s.logger.Info("round lost", slog.String("winner", string(s.winner)))
	return nil
}

// Duel

func (s *Session) handleDuelInitLocked(from model.ParticipantID, m *protocol.DuelInit) error {
	if err := s.fromHostLocked(from, m); err != nil {
		return err
	}
	cfg := model.GameConfig{
		Digits:          m.Digits,
		MatchStrategy:   m.MatchStrategy,
		PlayStyle:       model.PlayStyleDuel,
		AllowDuplicates: true,
	}
	if err := cfg.Validate(); err != nil {
		return s.violationLocked(from, m, err.Error(), false)
	}
	s.game = cfg
	s.resetRoundLocked()
	s.opponent = from
	s.phase = model.PhaseSettingSecret
	return nil
}

func (s *Session) handleDuelReadyLocked(from model.ParticipantID, m *protocol.DuelReady) error {
	if s.phase != model.PhaseSettingSecret || s.game.PlayStyle != model.PlayStyleDuel {
		return s.violationLocked(from, m, "no duel awaiting secrets", true)
	}
	if from != s.opponent {
		return s.violationLocked(from, m, "not the duel opponent", true)
	}
	if s.secret != "" {
		return s.violationLocked(from, m, "secret already received", true)
	}
	if err := s.scoring.ValidateGuess(m.Secret, s.game.Digits); err != nil {
		return s.violationLocked(from, m, err.Error(), true)
	}
	s.secret = m.Secret
	s.peerLocked(from).Ready = true
	s.maybeStartDuelLocked()
	return nil
}

// Kick and restart

// handleKickLocked flags the kick before the eviction that follows it, so
// the reason shown is the kick rather than a generic disconnect
func (s *Session) handleKickLocked(from model.ParticipantID, m *protocol.Kick) error {
	if err := s.fromHostLocked(from, m); err != nil {
		return err
	}
	s.kicked = true
	s.kickReason = m.Message
	s.resetRoundLocked()
	s.phase = model.PhaseLobby
	s.logger.Info("kicked by host", slog.String("reason", m.Message))
	return nil
}

func (s *Session) handleRestartRequestLocked(from model.ParticipantID) error {
	if !s.isHostLocked() {
		return s.violationLocked(from, &protocol.RestartRequest{}, "only the host handles restarts", false)
	}
	s.restartReq = true
	return nil
}

func (s *Session) handleRestartAcceptLocked(from model.ParticipantID) error {
	if err := s.fromHostLocked(from, &protocol.RestartAccept{}); err != nil {
		return err
	}
	s.resetRoundLocked()
	s.phase = model.PhaseLobby
	return nil
}

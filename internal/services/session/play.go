package session

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/protocol"
)

// Start begins a round. In solo mode a secret is drawn locally. In a room
// only the host may start: race broadcasts GAME_START with the secret and
// turn order, duel broadcasts DUEL_INIT and waits for both secrets.
func (s *Session) Start(cfg model.GameConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	if err := cfg.Validate(); err != nil {
		return s.failLocked(err)
	}
	if s.phase != model.PhaseLobby {
		return s.failLocked(fmt.Errorf("%w: start from %s", model.ErrWrongPhase, s.phase))
	}
	if err := s.beginRoundLocked(cfg); err != nil {
		return s.failLocked(err)
	}
	s.notifyLocked()
	return nil
}

// Restart re-runs the current configuration with fresh secrets and
// cleared histories. Host only.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	switch s.phase {
	case model.PhasePlaying, model.PhaseWon, model.PhaseLost:
	default:
		return s.failLocked(fmt.Errorf("%w: restart from %s", model.ErrWrongPhase, s.phase))
	}
	if s.cfg.Mode == ModeMultiplayer {
		if err := s.checkCanStartLocked(s.game); err != nil {
			return s.failLocked(err)
		}
		s.broadcastLocked(&protocol.RestartAccept{})
	}
	if err := s.beginRoundLocked(s.game); err != nil {
		return s.failLocked(err)
	}
	s.logger.Info("round restarted", slog.String("style", string(s.game.PlayStyle)))
	s.notifyLocked()
	return nil
}

// RequestRestart asks the host for a new round. Guest only.
func (s *Session) RequestRestart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	if !s.inRoom || s.isHostLocked() {
		return s.failLocked(fmt.Errorf("%w: only guests request restarts", model.ErrWrongPhase))
	}
	s.sendLocked(s.host, &protocol.RestartRequest{})
	return nil
}

func (s *Session) checkCanStartLocked(cfg model.GameConfig) error {
	if !s.isHostLocked() {
		return model.ErrNotHost
	}
	switch cfg.PlayStyle {
	case model.PlayStyleDuel:
		if len(s.members) != 1 {
			return fmt.Errorf("%w: room has %d players", model.ErrDuelRequiresTwoPlayers, len(s.members)+1)
		}
	default:
		if len(s.members) == 0 {
			return model.ErrInsufficientPlayers
		}
	}
	return nil
}

// beginRoundLocked resets round state and enters the first phase of cfg
func (s *Session) beginRoundLocked(cfg model.GameConfig) error {
	if s.cfg.Mode == ModeSolo {
		secret, err := s.scoring.GenerateSecret(cfg.Digits)
		if err != nil {
			return err
		}
		cfg.PlayStyle = model.PlayStyleRace
		s.game = cfg
		s.resetRoundLocked()
		s.secret = secret
		s.phase = model.PhasePlaying
		return nil
	}

	if err := s.checkCanStartLocked(cfg); err != nil {
		return err
	}
	s.game = cfg
	s.resetRoundLocked()

	if cfg.PlayStyle == model.PlayStyleDuel {
		s.opponent = s.members[0]
		s.phase = model.PhaseSettingSecret
		s.broadcastLocked(&protocol.DuelInit{Digits: cfg.Digits, MatchStrategy: cfg.MatchStrategy})
		s.logger.Info("duel started", slog.Int("digits", cfg.Digits))
		return nil
	}

	secret, err := s.scoring.GenerateSecret(cfg.Digits)
	if err != nil {
		return err
	}
	s.secret = secret
	s.turnOrder = append([]model.ParticipantID{s.self}, s.members...)
	s.turnIndex = 0
	s.phase = model.PhasePlaying
	s.broadcastLocked(s.gameStartLocked())
	s.logger.Info("race started",
		slog.Int("digits", cfg.Digits),
		slog.Int("players", len(s.turnOrder)))
	return nil
}

func (s *Session) gameStartLocked() *protocol.GameStart {
	return &protocol.GameStart{
		Digits:        s.game.Digits,
		MatchStrategy: s.game.MatchStrategy,
		Secret:        s.secret,
		TurnOrder:     slices.Clone(s.turnOrder),
		CurrentTurn:   s.currentTurnLocked(),
	}
}

func (s *Session) resetRoundLocked() {
	s.secret = ""
	s.ownSecret = ""
	s.turnOrder = nil
	s.turnIndex = 0
	s.awaiting = false
	s.opponent = ""
	s.history = nil
	s.winner = ""
	s.revealed = ""
	s.restartReq = false
	for _, p := range s.peers {
		p.GuessCount, p.LastExact, p.LastTotal, p.Ready = 0, 0, 0, false
	}
}

// SubmitSecret sets the secret the duel opponent must guess
func (s *Session) SubmitSecret(secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	if s.phase != model.PhaseSettingSecret {
		return s.failLocked(fmt.Errorf("%w: no secret expected in %s", model.ErrWrongPhase, s.phase))
	}
	if s.ownSecret != "" {
		return s.failLocked(model.ErrSecretAlreadySet)
	}
	if err := s.scoring.ValidateGuess(secret, s.game.Digits); err != nil {
		return s.failLocked(err)
	}

	s.ownSecret = secret
	s.broadcastLocked(&protocol.DuelReady{Secret: secret})
	s.maybeStartDuelLocked()
	s.notifyLocked()
	return nil
}

// maybeStartDuelLocked moves to play once both secrets are known
func (s *Session) maybeStartDuelLocked() {
	if s.ownSecret != "" && s.secret != "" {
		s.phase = model.PhasePlaying
		s.logger.Info("duel secrets exchanged")
	}
}

// SubmitGuess scores a guess against the secret this participant is
// trying to find and announces the result. In a race only the current
// turn holder may guess.
func (s *Session) SubmitGuess(guess string) (model.GuessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.GuessResult{}, model.ErrChannelClosed
	}
	if s.phase != model.PhasePlaying {
		return model.GuessResult{}, s.failLocked(fmt.Errorf("%w: cannot guess in %s", model.ErrWrongPhase, s.phase))
	}
	if err := s.scoring.ValidateGuess(guess, s.game.Digits); err != nil {
		return model.GuessResult{}, s.failLocked(err)
	}
	if len(s.turnOrder) > 0 && s.currentTurnLocked() != s.self {
		return model.GuessResult{}, s.failLocked(model.ErrNotYourTurn)
	}

	result := s.scoring.Score(s.secret, guess)
	s.history = append(s.history, result)

	if s.cfg.Mode == ModeMultiplayer {
		s.broadcastLocked(&protocol.GuessUpdate{
			GuessCount: len(s.history),
			LastResult: protocol.Result{Exact: result.Exact, Total: result.Total},
		})
	}

	// Both strategies win on a full positional match; strategy only
	// changes what is displayed.
	if result.IsWin() {
		s.phase = model.PhaseWon
		s.winner = s.self
		s.revealed = s.secret
		if s.cfg.Mode == ModeMultiplayer {
			s.broadcastLocked(&protocol.GameOver{Winner: s.self})
		}
		s.logger.Info("round won", slog.Int("guesses", len(s.history)))
	} else if len(s.turnOrder) > 0 {
		if s.isHostLocked() {
			s.advanceTurnLocked()
		} else {
			s.awaiting = true
		}
	}

	s.notifyLocked()
	return result, nil
}

// GiveUp ends a single-player round and reveals the secret
func (s *Session) GiveUp() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", model.ErrChannelClosed
	}
	if s.cfg.Mode != ModeSolo || s.phase != model.PhasePlaying {
		return "", s.failLocked(fmt.Errorf("%w: give up is only available in a solo round", model.ErrWrongPhase))
	}
	s.phase = model.PhaseLost
	s.revealed = s.secret
	s.notifyLocked()
	return s.secret, nil
}

// Kick tells a guest why it is being removed, then asks the relay to
// disconnect it once KickGrace has passed. Host only.
func (s *Session) Kick(target model.ParticipantID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrChannelClosed
	}
	if !s.isHostLocked() {
		return s.failLocked(model.ErrNotHost)
	}
	if !slices.Contains(s.members, target) {
		return s.failLocked(fmt.Errorf("%w: %s", model.ErrNotInRoom, target))
	}
	if _, pending := s.kickTimers[target]; pending {
		return nil
	}
	if message == "" {
		message = "You were removed from the room by the host"
	}

	s.sendLocked(target, &protocol.Kick{Message: message})
	s.kickTimers[target] = s.clock.AfterFunc(s.cfg.KickGrace, func() { s.evict(target) })
	s.logger.Info("kick scheduled", slog.String("target", string(target)))
	return nil
}

// evict runs when a kick's grace period ends
func (s *Session) evict(target model.ParticipantID) {
	s.mu.Lock()
	if _, pending := s.kickTimers[target]; !pending || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.kickTimers, target)
	transport := s.transport
	s.mu.Unlock()

	if err := transport.Evict(target); err != nil {
		s.logger.Warn("evict failed", slog.String("target", string(target)), slog.String("error", err.Error()))
	}
}

// Turn order

// currentTurnLocked is empty outside a race and for a guest whose guess
// the host has not yet answered with TURN_CHANGE
func (s *Session) currentTurnLocked() model.ParticipantID {
	if len(s.turnOrder) == 0 || s.awaiting {
		return ""
	}
	return s.turnOrder[s.turnIndex]
}

// advanceTurnLocked moves to the next entry cyclically and announces it
func (s *Session) advanceTurnLocked() {
	s.turnIndex = (s.turnIndex + 1) % len(s.turnOrder)
	s.broadcastLocked(&protocol.TurnChange{CurrentTurn: s.currentTurnLocked()})
}

// repairAfterDepartureLocked keeps a running game consistent after a
// member leaves the host's room. Spectators of a duel may come and go; the
// opponent leaving aborts it for everyone.
func (s *Session) repairAfterDepartureLocked(id model.ParticipantID) {
	if s.phase == model.PhaseLobby {
		return
	}

	if s.game.PlayStyle == model.PlayStyleDuel {
		if s.phase.IsTerminal() || id != s.opponent {
			return
		}
		s.resetRoundLocked()
		s.phase = model.PhaseLobby
		s.broadcastLocked(&protocol.RestartAccept{})
		s.setErrorLocked(fmt.Errorf("%w: duel opponent left", model.ErrPeerDisconnected))
		s.logger.Info("duel aborted", slog.String("departed", string(id)))
		return
	}

	oldIdx := slices.Index(s.turnOrder, id)
	if oldIdx < 0 {
		return
	}
	wasTurn := oldIdx == s.turnIndex
	s.turnOrder = slices.Delete(s.turnOrder, oldIdx, oldIdx+1)

	if s.phase != model.PhasePlaying {
		if s.turnIndex >= len(s.turnOrder) {
			s.turnIndex = 0
		}
		return
	}

	if len(s.turnOrder) <= 1 {
		s.phase = model.PhaseWon
		s.winner = s.self
		s.revealed = s.secret
		s.turnIndex = 0
		s.broadcastLocked(&protocol.GameOver{Winner: s.self})
		s.logger.Info("won by forfeit")
		return
	}

	switch {
	case wasTurn:
		// the entry now at the departed index, or the first if it fell off the end
		if oldIdx >= len(s.turnOrder) {
			s.turnIndex = 0
		} else {
			s.turnIndex = oldIdx
		}
	case oldIdx < s.turnIndex:
		s.turnIndex--
	}

	s.broadcastLocked(&protocol.TurnChange{
		CurrentTurn: s.currentTurnLocked(),
		TurnOrder:   slices.Clone(s.turnOrder),
	})
	s.logger.Info("turn order repaired",
		slog.String("departed", string(id)),
		slog.String("current_turn", string(s.currentTurnLocked())))
}

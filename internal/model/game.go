package model

import (
	"fmt"
	"time"
)

// Digit length bounds for a secret
const (
	MinDigits     = 3
	MaxDigits     = 10
	DefaultDigits = 4
)

// Phase represents the current state of a game session
type Phase string

const (
	PhaseLobby         Phase = "lobby"          // Waiting for the host to start
	PhaseSettingSecret Phase = "setting_secret" // Duel: both sides choosing secrets
	PhasePlaying       Phase = "playing"        // Guessing in progress
	PhaseWon           Phase = "won"
	PhaseLost          Phase = "lost"
)

// IsTerminal reports whether the phase ends a round
func (p Phase) IsTerminal() bool {
	return p == PhaseWon || p == PhaseLost
}

// PlayStyle selects how multiplayer rounds are played
type PlayStyle string

const (
	PlayStyleRace PlayStyle = "race" // Shared secret, strict turn order
	PlayStyleDuel PlayStyle = "duel" // Each side sets a secret for the other
)

// MatchStrategy selects which score components are shown after a guess
type MatchStrategy string

const (
	MatchExact MatchStrategy = "exact" // Only positional matches are shown
	MatchValue MatchStrategy = "value" // Positional and value matches are shown
)

// GameConfig holds the settings for a round
type GameConfig struct {
	Digits          int
	MatchStrategy   MatchStrategy
	PlayStyle       PlayStyle
	AllowDuplicates bool // always true; secrets are uniform digit strings
}

// DefaultGameConfig returns the default game configuration
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Digits:          DefaultDigits,
		MatchStrategy:   MatchExact,
		PlayStyle:       PlayStyleRace,
		AllowDuplicates: true,
	}
}

// Validate checks the configuration bounds
func (c GameConfig) Validate() error {
	if c.Digits < MinDigits || c.Digits > MaxDigits {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidDigits, c.Digits, MinDigits, MaxDigits)
	}
	switch c.MatchStrategy {
	case MatchExact, MatchValue:
	default:
		return fmt.Errorf("unknown match strategy %q", c.MatchStrategy)
	}
	switch c.PlayStyle {
	case PlayStyleRace, PlayStyleDuel:
	default:
		return fmt.Errorf("unknown play style %q", c.PlayStyle)
	}
	return nil
}

// GuessResult is the scored outcome of a single guess. Never mutated once recorded.
type GuessResult struct {
	Guess string
	Exact int // digits matching value and position
	Total int // digits matching value regardless of position
}

// IsWin reports whether every digit matched in place
func (r GuessResult) IsWin() bool {
	return len(r.Guess) > 0 && r.Exact == len(r.Guess)
}

// Format renders the result the way the match strategy displays it
func (r GuessResult) Format(strategy MatchStrategy) string {
	if strategy == MatchValue {
		return fmt.Sprintf("%s  exact=%d total=%d", r.Guess, r.Exact, r.Total)
	}
	return fmt.Sprintf("%s  exact=%d", r.Guess, r.Exact)
}

// PeerStatus is what a participant knows about another participant's progress
type PeerStatus struct {
	ID         ParticipantID
	Username   string
	GuessCount int
	LastExact  int
	LastTotal  int
	Ready      bool // duel: secret submitted
}

// SessionSnapshot is a read-only copy of session state for observers
type SessionSnapshot struct {
	Self         ParticipantID
	Host         ParticipantID
	IsHost       bool
	Phase        Phase
	Config       GameConfig
	Members      []ParticipantID
	TurnOrder    []ParticipantID
	CurrentTurn  ParticipantID
	History      []GuessResult
	Peers        []PeerStatus
	Winner       ParticipantID
	Secret       string // revealed after a loss or give-up; own secret in a duel
	Error        string // transient, expires on its own
	KickReason   string
	RestartAsked bool
	UpdatedAt    time.Time
}

// IsMyTurn reports whether the snapshot owner may guess now
func (s SessionSnapshot) IsMyTurn() bool {
	if s.Phase != PhasePlaying {
		return false
	}
	if s.Config.PlayStyle == PlayStyleDuel || len(s.TurnOrder) == 0 {
		return true
	}
	return s.CurrentTurn == s.Self
}

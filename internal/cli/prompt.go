package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/services/session"
)

const helpText = `Commands:
  <digits>        guess, or set your secret in a duel
  start           start a round (host)
  restart         start over (host), or ask the host to
  kick <id> [msg] remove a player (host)
  giveup          reveal the number (solo)
  status          show the full game state
  quit            leave`

// prompt reads player commands and reports what happens in the session
type prompt struct {
	sess *session.Session
	game model.GameConfig
	out  *Output
	solo bool

	mu      sync.Mutex
	lastErr string // already reported by the command that caused it
}

func newPrompt(sess *session.Session, game model.GameConfig, out *Output, solo bool) *prompt {
	return &prompt{sess: sess, game: game, out: out, solo: solo}
}

var errQuit = errors.New("quit")

func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// run processes commands until quit, end of input, ctx ending or the
// relay connection closing
func (p *prompt) run(ctx context.Context, in io.Reader, disconnected <-chan struct{}) error {
	updates, cancel := p.sess.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.watch(updates)
	}()
	defer wg.Wait()
	defer cancel()

	lines := readLines(in)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := p.handle(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				p.report(err)
			}
		case <-disconnected:
			p.out.PrintMessage("Disconnected from relay.")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *prompt) handle(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return errQuit
	case "help":
		p.out.PrintMessage(helpText)
		return nil
	case "status":
		p.out.Print(p.sess.Snapshot())
		return nil
	case "start":
		return p.sess.Start(p.game)
	case "restart":
		snap := p.sess.Snapshot()
		if p.solo || snap.IsHost {
			return p.sess.Restart()
		}
		if err := p.sess.RequestRestart(); err != nil {
			return err
		}
		p.out.PrintMessage("Asked the host for a restart.")
		return nil
	case "kick":
		if len(fields) < 2 {
			return errors.New("usage: kick <id> [message]")
		}
		return p.sess.Kick(model.ParticipantID(fields[1]), strings.Join(fields[2:], " "))
	case "giveup":
		secret, err := p.sess.GiveUp()
		if err != nil {
			return err
		}
		p.out.PrintMessage(fmt.Sprintf("The number was %s.", secret))
		return nil
	}

	if !isDigits(fields[0]) {
		return fmt.Errorf("unknown command %q, type 'help'", fields[0])
	}
	return p.play(fields[0])
}

// play submits a digit string as a duel secret or a guess
func (p *prompt) play(digits string) error {
	snap := p.sess.Snapshot()
	if snap.Phase == model.PhaseSettingSecret {
		if err := p.sess.SubmitSecret(digits); err != nil {
			return err
		}
		p.out.PrintMessage("Secret set. Waiting for your opponent.")
		return nil
	}

	result, err := p.sess.SubmitGuess(digits)
	if err != nil {
		return err
	}
	p.out.Print(GuessReport{Result: result, Strategy: snap.Config.MatchStrategy})
	if result.IsWin() {
		p.out.PrintMessage(fmt.Sprintf("You found it in %d guesses!", len(snap.History)+1))
	}
	return nil
}

func (p *prompt) report(err error) {
	p.mu.Lock()
	p.lastErr = err.Error()
	p.mu.Unlock()
	p.out.PrintError(err)
}

// watch prints state changes the player did not cause directly
func (p *prompt) watch(updates <-chan model.SessionSnapshot) {
	var prev model.SessionSnapshot
	first := true
	for snap := range updates {
		if !first {
			for _, line := range p.changes(prev, snap) {
				p.out.PrintMessage(line)
			}
		}
		prev, first = snap, false
	}
}

func (p *prompt) changes(prev, next model.SessionSnapshot) []string {
	var lines []string

	if len(next.Members) != len(prev.Members) && next.Host != "" {
		lines = append(lines, fmt.Sprintf("Players in room: %d", len(next.Members)+1))
	}

	if next.Phase != prev.Phase {
		switch next.Phase {
		case model.PhaseSettingSecret:
			lines = append(lines, fmt.Sprintf("Duel! Enter a %d-digit secret for your opponent.", next.Config.Digits))
		case model.PhasePlaying:
			if prev.Phase != model.PhaseSettingSecret {
				lines = append(lines, fmt.Sprintf("Round started: %d digits, %s match.", next.Config.Digits, next.Config.MatchStrategy))
			} else {
				lines = append(lines, "Both secrets are set. Start guessing!")
			}
		case model.PhaseLost:
			if next.Winner != "" {
				lines = append(lines, fmt.Sprintf("%s won. The number was %s.", next.Winner, next.Secret))
			}
		case model.PhaseWon:
			if len(next.History) == len(prev.History) {
				lines = append(lines, "Everyone else left. You win!")
			}
		case model.PhaseLobby:
			lines = append(lines, "Back in the lobby.")
		}
	}

	if next.Phase == model.PhasePlaying && next.CurrentTurn != prev.CurrentTurn && next.CurrentTurn != "" {
		if next.IsMyTurn() {
			lines = append(lines, "Your turn.")
		} else {
			lines = append(lines, fmt.Sprintf("Turn: %s", next.CurrentTurn))
		}
	}

	for _, peer := range next.Peers {
		if peer.GuessCount > guessCount(prev, peer.ID) {
			name := peer.Username
			if name == "" {
				name = string(peer.ID)
			}
			lines = append(lines, fmt.Sprintf("%s guessed: exact=%d total=%d", name, peer.LastExact, peer.LastTotal))
		}
	}

	if next.RestartAsked && !prev.RestartAsked {
		lines = append(lines, "A player asked for a restart. Type 'restart' to begin a new round.")
	}
	if next.KickReason != "" && next.KickReason != prev.KickReason {
		lines = append(lines, fmt.Sprintf("Kicked: %s", next.KickReason))
	}
	if next.Error != "" && next.Error != prev.Error {
		p.mu.Lock()
		reported := p.lastErr != "" && (strings.Contains(p.lastErr, next.Error) || strings.Contains(next.Error, p.lastErr))
		p.mu.Unlock()
		if !reported {
			lines = append(lines, "Error: "+next.Error)
		}
	}
	return lines
}

func guessCount(s model.SessionSnapshot, id model.ParticipantID) int {
	for _, peer := range s.Peers {
		if peer.ID == id {
			return peer.GuessCount
		}
	}
	return 0
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

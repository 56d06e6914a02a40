package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	relayclient "github.com/mcoot/guessnumber-go/internal/client"
	"github.com/mcoot/guessnumber-go/internal/dependencies/clock"
	"github.com/mcoot/guessnumber-go/internal/dependencies/random"
	"github.com/mcoot/guessnumber-go/internal/model"
	"github.com/mcoot/guessnumber-go/internal/services/scoring"
	"github.com/mcoot/guessnumber-go/internal/services/session"
)

// gameFlags are the round settings shared by the play commands
type gameFlags struct {
	digits   int
	style    string
	strategy string
}

func (g *gameFlags) register(fs *pflag.FlagSet, withStyle bool) {
	fs.IntVarP(&g.digits, "digits", "d", model.DefaultDigits, fmt.Sprintf("number of digits (%d-%d)", model.MinDigits, model.MaxDigits))
	fs.StringVar(&g.strategy, "strategy", string(model.MatchExact), "feedback shown per guess: exact or value")
	if withStyle {
		fs.StringVar(&g.style, "style", string(model.PlayStyleRace), "race (shared secret, turns) or duel (two players, own secrets)")
	}
}

func (g *gameFlags) config() (model.GameConfig, error) {
	c := model.DefaultGameConfig()
	c.Digits = g.digits
	c.MatchStrategy = model.MatchStrategy(g.strategy)
	if g.style != "" {
		c.PlayStyle = model.PlayStyle(g.style)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// newLogger writes session diagnostics to stderr, quietly unless verbose
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newSession(scfg session.Config, transport session.Transport, logger *slog.Logger) *session.Session {
	scfg.Username = cfg.Name
	return session.New(scfg, transport, scoring.New(random.New()), clock.New(), logger)
}

func newSoloCmd() *cobra.Command {
	var game gameFlags

	cmd := &cobra.Command{
		Use:   "solo",
		Short: "Play a single-player round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := game.config()
			if err != nil {
				return err
			}

			scfg := session.DefaultConfig()
			scfg.Mode = session.ModeSolo
			sess := newSession(scfg, nil, newLogger())
			defer sess.Close()

			if err := sess.Start(g); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(fmt.Sprintf("Guess the %d-digit number. Type 'giveup' to reveal it, 'help' for commands.", g.Digits))
			return newPrompt(sess, g, out, true).run(cmd.Context(), cmd.InOrStdin(), nil)
		},
	}

	game.register(cmd.Flags(), false)
	return cmd
}

func newHostCmd() *cobra.Command {
	var (
		game gameFlags
		noQR bool
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Open a room and host a multiplayer game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := game.config()
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.close()

			if err := waitFor(cmd.Context(), conn.session, func(s model.SessionSnapshot) bool { return s.IsHost }); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			roomID := string(conn.client.SelfID())
			invite := cfg.InviteURL(roomID)
			out.PrintMessage(fmt.Sprintf("Room: %s\nInvite: %s", roomID, invite))
			if cfg.Output == "text" && !noQR {
				if code, err := qrcode.New(invite, qrcode.Low); err == nil {
					out.PrintMessage(code.ToSmallString(false))
				}
			}
			out.PrintMessage("Type 'start' once players have joined, 'help' for commands.")
			return newPrompt(conn.session, g, out, false).run(cmd.Context(), cmd.InOrStdin(), conn.client.Done())
		},
	}

	game.register(cmd.Flags(), true)
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not print the invite as a QR code")
	return cmd
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join another player's room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.close()

			if err := conn.client.Join(cmd.Context(), model.RoomID(args[0])); err != nil {
				return err
			}
			if err := conn.session.Handshake(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.PrintMessage(fmt.Sprintf("Joined room %s. Waiting for the host to start, 'help' for commands.", args[0]))
			return newPrompt(conn.session, model.DefaultGameConfig(), out, false).run(cmd.Context(), cmd.InOrStdin(), conn.client.Done())
		},
	}
}

// connection is a relay client with a session driven over it
type connection struct {
	client  *relayclient.Client
	session *session.Session
	cancel  context.CancelFunc
}

func connect(ctx context.Context) (*connection, error) {
	relayURL, err := cfg.RelayURL()
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	c, err := relayclient.Dial(ctx, relayURL, relayclient.DefaultTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", relayURL, err)
	}

	sess := newSession(session.DefaultConfig(), c, logger)
	driveCtx, cancel := context.WithCancel(ctx)
	go func() { _ = relayclient.Drive(driveCtx, c, sess) }()

	return &connection{client: c, session: sess, cancel: cancel}, nil
}

func (c *connection) close() {
	c.cancel()
	c.session.Close()
	c.client.Close()
}

// waitFor blocks until cond holds for the session's state
func waitFor(ctx context.Context, sess *session.Session, cond func(model.SessionSnapshot) bool) error {
	updates, cancel := sess.Subscribe()
	defer cancel()

	timer := time.NewTimer(relayclient.DefaultTimeout)
	defer timer.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return model.ErrChannelClosed
			}
			if cond(snap) {
				return nil
			}
		case <-timer.C:
			return model.ErrConnectTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

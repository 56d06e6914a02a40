package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("GUESSNUMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "guessnum",
		Short: "Play the number guessing game from a terminal",
		Long: `guessnum plays the number guessing game against a guessnumber relay.

Play alone with 'solo', open a room with 'host' and share its ID, or enter
someone else's room with 'join'. 'health' and 'room get' query the relay's
JSON API.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Output != "text" && cfg.Output != "json" {
				return fmt.Errorf("invalid output format %q (must be text or json)", cfg.Output)
			}
			client = NewClient(cfg.ServerURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Relay server URL (env: GUESSNUMBER_SERVER)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Name shown to other players (env: GUESSNUMBER_NAME)")
	fs.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json (env: GUESSNUMBER_OUTPUT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output (env: GUESSNUMBER_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newParticipantCmd())
	rootCmd.AddCommand(newSoloCmd())
	rootCmd.AddCommand(newHostCmd())
	rootCmd.AddCommand(newJoinCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

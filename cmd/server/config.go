package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/guessnumber-go/internal/factory"
)

const releaseVersion = "0.3.0"

// Config holds server settings from flags and GUESSNUMBER_* variables
type Config struct {
	bind            string
	port            int
	publicURL       string
	storage         string
	redisURL        string
	redisPrefix     string
	rejectGrace     time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	logLevel        string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	switch c.storage {
	case factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.redisURL == "" {
			return errors.New("--redis-url is required when --storage=redis")
		}
	default:
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.storage)
	}
	if c.rejectGrace < 0 {
		return errors.New("--reject-grace must not be negative")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.logLevel)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return lvl, nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GUESSNUMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "guessnumber-server",
		Short:   "Relay server for multiplayer number guessing.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GUESSNUMBER_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GUESSNUMBER_PORT)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "base URL used in room invites, derived from each request if empty (env: GUESSNUMBER_PUBLIC_URL)")
	fs.StringVar(&cfg.storage, "storage", factory.StorageTypeMemory, "room directory backend: memory or redis (env: GUESSNUMBER_STORAGE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis connection URL (env: GUESSNUMBER_REDIS_URL)")
	fs.StringVar(&cfg.redisPrefix, "redis-prefix", "guessnum", "namespace for this relay's redis keys (env: GUESSNUMBER_REDIS_PREFIX)")
	fs.DurationVar(&cfg.rejectGrace, "reject-grace", 300*time.Millisecond, "time a rejected joiner stays connected to read the error (env: GUESSNUMBER_REJECT_GRACE)")
	fs.DurationVar(&cfg.readTimeout, "read-timeout", 15*time.Second, "HTTP read timeout (env: GUESSNUMBER_READ_TIMEOUT)")
	fs.DurationVar(&cfg.writeTimeout, "write-timeout", 15*time.Second, "HTTP write timeout (env: GUESSNUMBER_WRITE_TIMEOUT)")
	fs.DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for graceful shutdown (env: GUESSNUMBER_SHUTDOWN_TIMEOUT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error (env: GUESSNUMBER_LOG_LEVEL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("guessnumber-server v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

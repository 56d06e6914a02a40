package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/guessnumber-go/internal/dependencies/clock"
	"github.com/mcoot/guessnumber-go/internal/dependencies/random"
	"github.com/mcoot/guessnumber-go/internal/relay"
	"github.com/mcoot/guessnumber-go/internal/services/scoring"
	"github.com/mcoot/guessnumber-go/internal/services/session"
	"github.com/mcoot/guessnumber-go/internal/storage"
	"github.com/mcoot/guessnumber-go/internal/storage/memory"
	redisstorage "github.com/mcoot/guessnumber-go/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	Logger *slog.Logger

	// Presence directory
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	ScoringService *scoring.Service
	Hub            *relay.Hub

	closeStorage func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the directory backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// RelayConfig holds relay settings (optional)
	// If zero value, defaults to relay.DefaultConfig()
	RelayConfig relay.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	var closeStorage func() error
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closeStorage = redisStore.Close
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	relayCfg := cfg.RelayConfig
	if relayCfg.SendBuffer == 0 {
		relayCfg = relay.DefaultConfig()
	}

	app := newWithDependencies(store, clock.New(), random.New(), relayCfg, relay.UUIDGenerator(), logger)
	app.closeStorage = closeStorage
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, relayCfg relay.Config, newID relay.IDGenerator, logger *slog.Logger) *App {
	return &App{
		Logger:         logger,
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		ScoringService: scoring.New(rnd),
		Hub:            relay.NewHub(relayCfg, clk, store, newID, logger),
	}
}

// NewSession creates a game session sharing this app's clock, random
// source and logger. transport may be nil in solo mode.
func (a *App) NewSession(cfg session.Config, transport session.Transport) *session.Session {
	return session.New(cfg, transport, a.ScoringService, a.Clock, a.Logger)
}

// Close disconnects every relay participant and releases the directory
func (a *App) Close(ctx context.Context) error {
	err := a.Hub.Close(ctx)
	if a.closeStorage != nil {
		err = errors.Join(err, a.closeStorage())
	}
	return err
}

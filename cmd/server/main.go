package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mcoot/guessnumber-go/internal/api"
	"github.com/mcoot/guessnumber-go/internal/factory"
	"github.com/mcoot/guessnumber-go/internal/relay"
	redisstorage "github.com/mcoot/guessnumber-go/internal/storage/redis"
)

func main() {
	// A missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *Config) error {
	level, _ := cfg.level()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	relayCfg := relay.DefaultConfig()
	relayCfg.RejectGrace = cfg.rejectGrace

	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.storage,
		RelayConfig: relayCfg,
	}
	if cfg.storage == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.redisURL
		redisCfg.KeyPrefix = cfg.redisPrefix
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Hub:       app.Hub,
		PublicURL: cfg.publicURL,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.bind
	serverConfig.Port = cfg.port
	serverConfig.ReadTimeout = cfg.readTimeout
	serverConfig.WriteTimeout = cfg.writeTimeout
	serverConfig.ShutdownTimeout = cfg.shutdownTimeout
	server := api.NewServer(router, serverConfig, logger)
	server.OnShutdown(app.Close)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.storage),
		slog.String("version", releaseVersion))

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

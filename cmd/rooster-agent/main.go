package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	agent "github.com/rooster-app/rooster-agent"
	"github.com/rooster-app/rooster-agent/cache"
	"github.com/rooster-app/rooster-agent/config"
	"github.com/rooster-app/rooster-agent/push"
)

// this is set by goreleaser
var version string

func main() {
	configureLogging()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("agent failed")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	originURL, err := cfg.OriginURL()
	if err != nil {
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	precache, err := config.LoadManifest(cfg.Cache.Manifest)
	if err != nil {
		return fmt.Errorf("precache manifest load failed: %w", err)
	}

	provider, err := newProvider(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache provider setup failed: %w", err)
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	a := agent.New(agent.Config{
		Cache:        provider,
		Generation:   cfg.Cache.Generation,
		OriginURL:    originURL,
		APIPrefix:    cfg.Origin.APIPrefix,
		RootDocument: cfg.Origin.RootDocument,
		Precache:     precache,
		Scope:        cfg.Server.Scope,
		Push: push.Config{
			Title: cfg.Push.DefaultTitle,
			Body:  cfg.Push.DefaultBody,
			Icon:  cfg.Push.Icon,
		},
	})

	// install completes before activate, and activate completes before
	// any fetch or push event is handled for this generation
	a.Install(ctx)
	a.Activate(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newBridge(a),
		ReadHeaderTimeout: 20 * time.Second,
	}

	go func() {
		<-ctx.Done()
		timeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		log.Info().Msg("shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().
		Int("port", cfg.Server.Port).
		Str("origin", originURL.String()).
		Str("generation", cfg.Cache.Generation).
		Msg("agent listening")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newProvider(cfg config.CacheConfig) (cache.Provider, error) {
	switch cfg.Provider {
	case "memory":
		return cache.NewMemCache(cfg.MaxEntries), nil
	default:
		return cache.NewSQLiteCache(cfg.DBFile)
	}
}

func configureLogging() {
	logLevel := zerolog.InfoLevel
	if os.Getenv("AGENT_DEBUG") != "" {
		logLevel = zerolog.DebugLevel
	}
	log.Logger = log.Level(logLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	if version == "" {
		version = "DEV"
	}
	log.Logger = log.Logger.With().Str("version", version).Logger()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fonotools/avalia/internal/ai"
	"github.com/fonotools/avalia/internal/assessment"
	"github.com/fonotools/avalia/internal/auth"
	"github.com/fonotools/avalia/internal/platform/cache"
	"github.com/fonotools/avalia/internal/platform/config"
	"github.com/fonotools/avalia/internal/platform/database"
	"github.com/fonotools/avalia/internal/protocol"
	"github.com/fonotools/avalia/internal/report"
	"github.com/fonotools/avalia/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	catalog, err := protocol.Load()
	if err != nil {
		slog.Error("failed to load protocol catalogs", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	narrative := buildNarrative(ctx, cfg)

	authenticator := auth.New(cfg.Auth.Username, cfg.Auth.PasswordHash)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.New(catalog, store, authenticator, narrative).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// openStore picks the backend from config: embedded sqlite by default,
// postgres for shared deployments.
func openStore(ctx context.Context, cfg *config.Config) (assessment.RecordStore, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.Connect(ctx, database.Config{
			URL:      cfg.Storage.PostgresURL,
			MaxConns: cfg.Storage.MaxConns,
			MinConns: cfg.Storage.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		store, err := assessment.NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		store, err := assessment.NewSQLiteStore(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

// buildNarrative wires the AI providers and the optional redis cache. Returns
// nil when no provider is configured; the narrative endpoint then answers 503.
func buildNarrative(ctx context.Context, cfg *config.Config) *report.NarrativeGenerator {
	if !cfg.HasAIProvider() {
		slog.Info("no narrative provider configured")
		return nil
	}

	router := ai.NewRouter()
	if cfg.AI.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.AI.Google.APIKey))
	}
	if cfg.AI.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey))
	}

	var c *cache.Cache
	if cfg.Cache.URL != "" {
		var err error
		c, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("narrative cache unavailable", "error", err)
			c = nil
		}
	}
	return report.NewNarrativeGenerator(router, c)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

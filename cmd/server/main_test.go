package main

import (
	"log/slog"
	"testing"

	"github.com/fonotools/avalia/internal/platform/config"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := logLevel(tt.in); got != tt.want {
			t.Errorf("logLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	ctx := t.Context()
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: "sqlite", SQLitePath: ":memory:"},
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer closeStore()

	if _, err := store.GetAll(ctx); err != nil {
		t.Errorf("GetAll on fresh store: %v", err)
	}
}

func TestBuildNarrativeUnconfigured(t *testing.T) {
	cfg := &config.Config{}
	if gen := buildNarrative(t.Context(), cfg); gen != nil {
		t.Error("buildNarrative should return nil without provider keys")
	}
}

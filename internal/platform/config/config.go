// Package config loads application configuration from environment variables.
// All variables use the AVALIA_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Cache   CacheConfig
	AI      AIConfig
	Auth    AuthConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	Driver      string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string
	MaxConns    int
	MinConns    int
}

// CacheConfig holds Redis connection settings for the narrative cache.
// An empty URL disables caching.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for the narrative providers.
type AIConfig struct {
	Google GoogleConfig
	OpenAI OpenAIConfig
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// AuthConfig holds the single clinic account.
type AuthConfig struct {
	Username     string
	PasswordHash string // bcrypt
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with AVALIA_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("AVALIA_SERVER_PORT", 8080),
			Host: envStr("AVALIA_SERVER_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			Driver:      envStr("AVALIA_STORAGE_DRIVER", "sqlite"),
			SQLitePath:  envStr("AVALIA_STORAGE_SQLITE_PATH", "./avalia.db"),
			PostgresURL: envStr("AVALIA_STORAGE_POSTGRES_URL", ""),
			MaxConns:    envInt("AVALIA_STORAGE_MAX_CONNS", 25),
			MinConns:    envInt("AVALIA_STORAGE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("AVALIA_CACHE_URL", ""),
		},
		AI: AIConfig{
			Google: GoogleConfig{
				APIKey: envStr("AVALIA_AI_GOOGLE_API_KEY", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey: envStr("AVALIA_AI_OPENAI_API_KEY", ""),
			},
		},
		Auth: AuthConfig{
			Username:     envStr("AVALIA_AUTH_USERNAME", "admin"),
			PasswordHash: envStr("AVALIA_AUTH_PASSWORD_HASH", ""),
		},
		Log: LogConfig{
			Level:  envStr("AVALIA_LOG_LEVEL", "info"),
			Format: envStr("AVALIA_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("AVALIA_STORAGE_POSTGRES_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("AVALIA_STORAGE_DRIVER must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	if c.Auth.PasswordHash == "" {
		return fmt.Errorf("AVALIA_AUTH_PASSWORD_HASH is required")
	}

	return nil
}

// HasAIProvider returns true if at least one narrative provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.Google.APIKey != "" || c.AI.OpenAI.APIKey != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

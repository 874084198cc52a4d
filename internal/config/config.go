package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Database: a SQLite path or a postgres:// DSN
	DatabaseURL string `env:"DATABASE_URL" envDefault:"./data/aimail.db"`

	// Worker
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"60s"`
	WorkerID     string        `env:"WORKER_ID"`
	ScanLastN    int           `env:"SCAN_LAST_N" envDefault:"30"`

	// Mailbox
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Generation service (OpenAI-compatible)
	AIBaseURL string        `env:"AI_BASE_URL" envDefault:"https://api.openai.com"`
	AIAPIKey  string        `env:"AI_API_KEY,required"`
	AIModel   string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	AITimeout time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.ScanLastN <= 0 {
		return nil, fmt.Errorf("SCAN_LAST_N must be positive, got %d", cfg.ScanLastN)
	}

	return cfg, nil
}

// WorkerIdentity returns the configured worker id, or derives a stable
// one from host, pid and a random suffix so concurrent instances never
// collide.
func (c *Config) WorkerIdentity() string {
	if c.WorkerID != "" {
		return c.WorkerID
	}
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:6])
}

// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabaseURL selects PostgreSQL; empty runs on the in-memory store.
	DatabaseURL string        `env:"DATABASE_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// AuthSecret enables bearer tokens when set.
	AuthSecret string        `env:"AUTH_SECRET"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`

	Jobs     Jobs
	QuoteAPI QuoteAPI

	LessonReward   decimal.Decimal `env:"LESSON_REWARD" envDefault:"100"`
	SeedDemoData   bool            `env:"SEED_DEMO_DATA" envDefault:"true"`
	RequestTimeout time.Duration   `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type Jobs struct {
	DraftClockInterval   time.Duration `env:"DRAFT_CLOCK_INTERVAL" envDefault:"1s"`
	PriceRefreshInterval time.Duration `env:"PRICE_REFRESH_INTERVAL" envDefault:"1m"`
	WaiverInterval       time.Duration `env:"WAIVER_PROCESS_INTERVAL" envDefault:"24h"`
}

// QuoteAPI configures the HTTP quote source. Without a URL prices move on
// the simulated feed only.
type QuoteAPI struct {
	URL     string        `env:"QUOTE_API_URL"`
	Key     string        `env:"QUOTE_API_KEY"`
	Timeout time.Duration `env:"QUOTE_API_TIMEOUT" envDefault:"10s"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Jobs.DraftClockInterval < time.Second {
		return fmt.Errorf("config: DRAFT_CLOCK_INTERVAL must be at least 1s, got %s", c.Jobs.DraftClockInterval)
	}
	if c.LessonReward.IsNegative() {
		return fmt.Errorf("config: LESSON_REWARD must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
}

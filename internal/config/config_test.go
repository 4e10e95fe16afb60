package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.CacheTTL != 30*time.Second || cfg.Jobs.DraftClockInterval != time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if !cfg.LessonReward.Equal(decimal.NewFromInt(100)) {
		t.Errorf("lesson reward = %s, want 100", cfg.LessonReward)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LESSON_REWARD", "250.50")
	t.Setenv("PRICE_REFRESH_INTERVAL", "15s")
	t.Setenv("QUOTE_API_URL", "https://quotes.test")
	t.Setenv("SEED_DEMO_DATA", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.Jobs.PriceRefreshInterval != 15*time.Second || cfg.QuoteAPI.URL != "https://quotes.test" || cfg.SeedDemoData {
		t.Errorf("config = %+v", cfg)
	}
	if !cfg.LessonReward.Equal(decimal.RequireFromString("250.5")) {
		t.Errorf("lesson reward = %s", cfg.LessonReward)
	}
}

func TestLoad_Invalid(t *testing.T) {
	for name, env := range map[string][2]string{
		"sub-second clock": {"DRAFT_CLOCK_INTERVAL", "500ms"},
		"negative reward":  {"LESSON_REWARD", "-1"},
		"bad level":        {"LOG_LEVEL", "loud"},
		"bad duration":     {"CACHE_TTL", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", env[0], env[1])
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Errorf("DEBUG = %v, %v", lvl, err)
	}
	if lvl, err := ParseLevel(""); err != nil || lvl != slog.LevelInfo {
		t.Errorf("empty = %v, %v", lvl, err)
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")
	t.Setenv("ALPHA_VANTAGE_RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("QUOTE_TTL_SECS", "")
	t.Setenv("SERIES_TTL_SECS", "")
	t.Setenv("SEARCH_TTL_SECS", "")
	t.Setenv("RSI_OVERBOUGHT", "")
	t.Setenv("RSI_OVERSOLD", "")
	t.Setenv("STOCH_OVERBOUGHT", "")
	t.Setenv("STOCH_OVERSOLD", "")
	t.Setenv("ANALYSIS_MAX_CONCURRENCY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("MONITOR_POLL_SECS", "")
	t.Setenv("PORT", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.RateLimitPerMinute != 5 {
		t.Fatalf("expected default rate limit 5, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.QuoteTTL != time.Minute || cfg.SeriesTTL != 15*time.Minute || cfg.SearchTTL != time.Hour {
		t.Fatalf("unexpected TTL defaults: %+v", cfg)
	}
	if cfg.Thresholds.RSIOverbought != 70 || cfg.Thresholds.StochOversold != 20 {
		t.Fatalf("unexpected threshold defaults: %+v", cfg.Thresholds)
	}
	if cfg.MaxConcurrency != 4 || cfg.MonitorPollSecs != 900 || cfg.HTTPPort != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "demo")
	t.Setenv("ALPHA_VANTAGE_RATE_LIMIT_PER_MINUTE", "75")
	t.Setenv("QUOTE_TTL_SECS", "30")
	t.Setenv("RSI_OVERBOUGHT", "75")
	t.Setenv("STOCH_OVERSOLD", "25")
	t.Setenv("ANALYSIS_MAX_CONCURRENCY", "8")
	t.Setenv("REDIS_URL", "redis:6379")

	cfg := Load()
	if cfg.AlphaVantageAPIKey != "demo" || cfg.RateLimitPerMinute != 75 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.QuoteTTL != 30*time.Second {
		t.Fatalf("expected 30s quote TTL, got %v", cfg.QuoteTTL)
	}
	if cfg.Thresholds.RSIOverbought != 75 || cfg.Thresholds.StochOversold != 25 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.MaxConcurrency != 8 {
		t.Fatalf("expected max concurrency 8, got %d", cfg.MaxConcurrency)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_RATE_LIMIT_PER_MINUTE", "zero")
	t.Setenv("QUOTE_TTL_SECS", "-5")
	t.Setenv("RSI_OVERBOUGHT", "150")

	cfg := Load()
	if cfg.RateLimitPerMinute != 5 {
		t.Fatalf("bad rate limit must fall back, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.QuoteTTL != time.Minute {
		t.Fatalf("bad TTL must fall back, got %v", cfg.QuoteTTL)
	}
	if cfg.Thresholds.RSIOverbought != 70 {
		t.Fatalf("out-of-range threshold must fall back, got %v", cfg.Thresholds.RSIOverbought)
	}
}

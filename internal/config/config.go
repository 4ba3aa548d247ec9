package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"stellariq/internal/domain"
)

type Config struct {
	AlphaVantageAPIKey string
	RateLimitPerMinute int

	QuoteTTL  time.Duration
	SeriesTTL time.Duration
	SearchTTL time.Duration

	Thresholds     domain.Thresholds
	MaxConcurrency int

	DatabaseURL      string
	RedisURL         string
	TelegramBotToken string

	MonitorPollSecs int
	HTTPPort        int
}

func Load() *Config {
	cfg := &Config{
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHA_VANTAGE_API_KEY not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}

	cfg.RateLimitPerMinute = 5
	if v := strings.TrimSpace(os.Getenv("ALPHA_VANTAGE_RATE_LIMIT_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitPerMinute = n
		}
	}

	cfg.QuoteTTL = secsEnv("QUOTE_TTL_SECS", 60)
	cfg.SeriesTTL = secsEnv("SERIES_TTL_SECS", 900)
	cfg.SearchTTL = secsEnv("SEARCH_TTL_SECS", 3600)

	cfg.Thresholds = domain.DefaultThresholds()
	if v := floatEnv("RSI_OVERBOUGHT", 50, 100); v != nil {
		cfg.Thresholds.RSIOverbought = *v
	}
	if v := floatEnv("RSI_OVERSOLD", 0, 50); v != nil {
		cfg.Thresholds.RSIOversold = *v
	}
	if v := floatEnv("STOCH_OVERBOUGHT", 50, 100); v != nil {
		cfg.Thresholds.StochOverbought = *v
	}
	if v := floatEnv("STOCH_OVERSOLD", 0, 50); v != nil {
		cfg.Thresholds.StochOversold = *v
	}

	cfg.MaxConcurrency = 4
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_MAX_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrency = n
		}
	}

	cfg.MonitorPollSecs = 900
	if v := strings.TrimSpace(os.Getenv("MONITOR_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MonitorPollSecs = n
		}
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	return cfg
}

func secsEnv(name string, def int) time.Duration {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("Warning: invalid %s=%q, using default %ds", name, v, def)
	}
	return time.Duration(def) * time.Second
}

func floatEnv(name string, lo, hi float64) *float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < lo || n > hi {
		log.Printf("Warning: invalid %s=%q, keeping default", name, v)
		return nil
	}
	return &n
}

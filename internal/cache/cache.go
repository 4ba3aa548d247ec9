// Package cache fronts the market-data provider with a Redis store.
// Entries expire by TTL; an expired entry reads as a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a Redis client with JSON payloads and composite keys.
type Store struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Connect dials Redis at addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	log.Println("Connected to Redis")
	return client, nil
}

// Get unmarshals the entry at key into dest. A missing or expired key
// returns (false, nil); absence is not an error.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set writes value at key for ttl. Last writer wins.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Key builds a deterministic composite key: the prefix followed by
// param:value pairs in sorted param order. Identical requests always
// map to the same key; distinct requests never collide.
func Key(prefix string, params map[string]string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, prefix)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+":"+params[name])
	}
	return strings.Join(parts, ":")
}

func QuoteKey(symbol string) string {
	return Key("stock_quote", map[string]string{"symbol": symbol})
}

func DailyKey(symbol, outputSize string) string {
	return Key("stock_daily", map[string]string{"symbol": symbol, "outputsize": outputSize})
}

func IntradayKey(symbol, interval, outputSize string) string {
	return Key("stock_intraday", map[string]string{
		"symbol": symbol, "interval": interval, "outputsize": outputSize,
	})
}

func WeeklyKey(symbol string) string {
	return Key("stock_weekly", map[string]string{"symbol": symbol})
}

func MonthlyKey(symbol string) string {
	return Key("stock_monthly", map[string]string{"symbol": symbol})
}

func CryptoSeriesKey(rangeName, symbol, market string) string {
	return Key("crypto_"+rangeName, map[string]string{"symbol": symbol, "market": market})
}

func CryptoIntradayKey(symbol, market, interval string) string {
	return Key("crypto_intraday", map[string]string{
		"symbol": symbol, "market": market, "interval": interval,
	})
}

func RateKey(from, to string) string {
	return Key("crypto_rate", map[string]string{"from_currency": from, "to_currency": to})
}

func SearchKey(keywords string) string {
	return Key("search", map[string]string{"keywords": keywords})
}

func TrendingKey(assetType string) string {
	return Key("trending", map[string]string{"asset_type": assetType})
}

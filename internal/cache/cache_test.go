package cache

import (
	"context"
	"testing"
	"time"

	"stellariq/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client), mr
}

func TestSetThenGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	quote := domain.Quote{Symbol: "AAPL", Price: 187.32, Volume: 1000}
	if err := store.Set(ctx, QuoteKey("AAPL"), quote, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got domain.Quote
	ok, err := store.Get(ctx, QuoteKey("AAPL"), &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Symbol != "AAPL" || got.Price != 187.32 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestGetAfterTTLIsMiss(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, QuoteKey("MSFT"), domain.Quote{Symbol: "MSFT"}, 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	mr.FastForward(31 * time.Second)

	var got domain.Quote
	ok, err := store.Get(ctx, QuoteKey("MSFT"), &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestMissingKeyIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)

	var got domain.Quote
	ok, err := store.Get(context.Background(), QuoteKey("NVDA"), &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestInvalidate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, SearchKey("apple"), []domain.SearchResult{{Symbol: "AAPL"}}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Invalidate(ctx, SearchKey("apple")); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	var got []domain.SearchResult
	ok, _ := store.Get(ctx, SearchKey("apple"), &got)
	if ok {
		t.Fatal("expected miss after invalidation")
	}
}

func TestKeyIsDeterministicAndCollisionFree(t *testing.T) {
	a := Key("stock_intraday", map[string]string{"symbol": "AAPL", "interval": "5min", "outputsize": "compact"})
	b := Key("stock_intraday", map[string]string{"outputsize": "compact", "interval": "5min", "symbol": "AAPL"})
	if a != b {
		t.Fatalf("identical params must produce identical keys: %s vs %s", a, b)
	}

	c := Key("stock_intraday", map[string]string{"symbol": "AAPL", "interval": "15min", "outputsize": "compact"})
	if a == c {
		t.Fatal("distinct params must not collide")
	}

	if IntradayKey("AAPL", "5min", "compact") != a {
		t.Fatalf("builder mismatch: %s", IntradayKey("AAPL", "5min", "compact"))
	}
}

package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stellariq/internal/domain"
)

func TestAllowEnforcesQuota(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := NewWithWindow(5, time.Minute, func() time.Time { return now })

	admitted := 0
	for i := 0; i < 6; i++ {
		if limiter.Allow() {
			admitted++
		}
	}
	if admitted != 5 {
		t.Fatalf("expected 5 admissions, got %d", admitted)
	}
}

func TestAllowPrunesExpiredWindow(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := NewWithWindow(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("expected first two admissions to succeed")
	}
	if limiter.Allow() {
		t.Fatal("expected third admission to be rejected")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow() {
		t.Fatal("expected admission after window rolled")
	}
	if limiter.Pending() != 1 {
		t.Fatalf("expected 1 pending call, got %d", limiter.Pending())
	}
}

func TestAllowConcurrentCallersNeverExceedQuota(t *testing.T) {
	limiter := New(10)

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	if admitted != 10 {
		t.Fatalf("expected exactly 10 admissions, got %d", admitted)
	}
}

func TestWaitTimesOut(t *testing.T) {
	limiter := NewWithWindow(1, time.Minute, nil)
	if !limiter.Allow() {
		t.Fatal("expected first admission to succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if limiter.Pending() != 1 {
		t.Fatalf("timed-out caller must not record a call, pending=%d", limiter.Pending())
	}
}

func TestWaitReturnsWhenSlotFrees(t *testing.T) {
	limiter := NewWithWindow(1, 50*time.Millisecond, nil)
	if !limiter.Allow() {
		t.Fatal("expected first admission to succeed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("expected Wait to succeed once the window rolled: %v", err)
	}
}

// Package ratelimit gates outbound provider calls to a fixed number of
// admissions per rolling window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stellariq/internal/domain"
)

const defaultWindow = time.Minute

// Limiter admits at most quota calls within any trailing window. It is
// safe for concurrent use; admissions are recorded only when granted.
type Limiter struct {
	mu     sync.Mutex
	quota  int
	window time.Duration
	calls  []time.Time
	now    func() time.Time
}

func New(quota int) *Limiter {
	return NewWithWindow(quota, defaultWindow, nil)
}

func NewWithWindow(quota int, window time.Duration, now func() time.Time) *Limiter {
	if quota <= 0 {
		quota = 1
	}
	if window <= 0 {
		window = defaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		quota:  quota,
		window: window,
		calls:  make([]time.Time, 0, quota),
		now:    now,
	}
}

// Allow reports whether a call may proceed now, recording the admission
// if so. Callers that receive false should surface ErrRateLimited.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.calls) >= l.quota {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Wait blocks until a slot frees or ctx ends. A deadline expiry maps to
// ErrTimeout; cancellation returns the context error unchanged. Nothing
// is recorded for a caller that gives up.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.calls) < l.quota {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("rate limit admission: %w", domain.ErrTimeout)
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Pending returns the number of admissions still inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls)
}

// prune drops admissions older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.calls) && !l.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.calls = append(l.calls[:0], l.calls[idx:]...)
	}
}

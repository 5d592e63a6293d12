package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is an in-memory sliding window log limiter. It covers a
// single process only; the gateway uses it as the fail-open fallback
// when redis is unreachable, and tests use it directly.
type LocalLimiter struct {
	now func() time.Time

	mu       sync.Mutex
	requests int
	window   time.Duration
	windows  map[string][]time.Time
}

// LocalOption is a functional option for the local limiter.
type LocalOption func(*LocalLimiter)

// WithLocalClock overrides the limiter clock, used by tests.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(l *LocalLimiter) {
		l.now = now
	}
}

// NewLocalLimiter creates an in-memory sliding window limiter.
func NewLocalLimiter(requests int, window time.Duration, opts ...LocalOption) *LocalLimiter {
	l := &LocalLimiter{
		now:      time.Now,
		requests: requests,
		window:   window,
		windows:  make(map[string][]time.Time),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow records one request against the key's window.
func (l *LocalLimiter) Allow(_ context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	entries := l.windows[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.requests {
		l.windows[key] = kept
		resetAt := kept[0].Add(l.window)
		return &Result{
			Allowed:    false,
			Limit:      l.requests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept

	return &Result{
		Allowed:   true,
		Limit:     l.requests,
		Remaining: l.requests - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}, nil
}

// Limit returns the configured ceiling and window.
func (l *LocalLimiter) Limit() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests, l.window
}

// SetLimit replaces the ceiling and window.
func (l *LocalLimiter) SetLimit(requests int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = requests
	l.window = window
}

// Reset clears the key's window.
func (l *LocalLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}

// Ensure LocalLimiter implements Limiter.
var _ Limiter = (*LocalLimiter)(nil)

// Package ratelimit implements per-user request rate limiting with a
// sliding window log. The authoritative limiter runs on redis so every
// gateway instance counts against the same window; a local limiter
// covers tests and the fail-open fallback path.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the backing store could not be reached
// and the limiter is configured to fail closed.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured request ceiling for the window.
	Limit int

	// Remaining is how many further requests the window admits.
	Remaining int

	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time

	// RetryAfter is how long to wait before retrying. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow records one request against the key's window and reports
	// whether it is admitted. Denied requests are not recorded, so being
	// over the limit never pushes the reset time further out.
	Allow(ctx context.Context, key string) (*Result, error)

	// Limit returns the configured window size and request ceiling.
	Limit() (requests int, window time.Duration)

	// Reset clears the key's window.
	Reset(ctx context.Context, key string) error
}

// NoopLimiter admits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that always allows.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow always admits the request.
func (n *NoopLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	return &Result{Allowed: true, Limit: -1, Remaining: -1}, nil
}

// Limit reports an unbounded window.
func (n *NoopLimiter) Limit() (int, time.Duration) {
	return -1, 0
}

// Reset is a no-op.
func (n *NoopLimiter) Reset(_ context.Context, _ string) error {
	return nil
}

// Ensure NoopLimiter implements Limiter.
var _ Limiter = (*NoopLimiter)(nil)

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/tripgate/tripgate/internal/observability"
)

const (
	// DefaultKeyPrefix is the default rate limit key prefix.
	DefaultKeyPrefix = "ratelimit"

	// DefaultTimeout bounds individual limiter operations.
	DefaultTimeout = time.Second
)

// RedisConfig holds redis limiter settings.
type RedisConfig struct {
	// Requests is the request ceiling per window.
	Requests int

	// Window is the sliding window length.
	Window time.Duration

	// KeyPrefix is prepended to every window key.
	KeyPrefix string

	// Timeout bounds individual limiter operations.
	Timeout time.Duration

	// FailOpen allows traffic through a local fallback limiter when the
	// store is unreachable. When false, unreachable means denied.
	FailOpen bool
}

// RedisLimiter is the distributed sliding window limiter. A circuit
// breaker shields redis from repeated calls while it is down; depending
// on policy, breaker trips either fall back to a per-instance local
// limiter or deny outright.
type RedisLimiter struct {
	client   redis.UniversalClient
	breaker  *gobreaker.CircuitBreaker
	fallback *LocalLimiter
	logger   observability.Logger
	now      func() time.Time
	nonce    func() string

	mu        sync.RWMutex
	requests  int
	window    time.Duration
	keyPrefix string
	timeout   time.Duration
	failOpen  bool
}

// RedisOption is a functional option for the redis limiter.
type RedisOption func(*RedisLimiter)

// WithLimiterLogger sets the logger for the limiter.
func WithLimiterLogger(logger observability.Logger) RedisOption {
	return func(l *RedisLimiter) {
		l.logger = logger
	}
}

// WithClock overrides the limiter clock, used by tests.
func WithClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

// NewRedisLimiter creates a redis-backed sliding window limiter.
func NewRedisLimiter(client redis.UniversalClient, config RedisConfig, opts ...RedisOption) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Requests <= 0 {
		return nil, errors.New("requests must be positive")
	}
	if config.Window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	l := &RedisLimiter{
		client:    client,
		logger:    observability.NopLogger(),
		now:       time.Now,
		nonce:     uuid.NewString,
		requests:  config.Requests,
		window:    config.Window,
		keyPrefix: config.KeyPrefix,
		timeout:   config.Timeout,
		failOpen:  config.FailOpen,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.fallback = NewLocalLimiter(config.Requests, config.Window, WithLocalClock(l.now))

	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-redis",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("rate limit breaker state change",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			recordBreakerState(to)
		},
	})

	return l, nil
}

// Allow records one request against the key's window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	l.mu.RLock()
	requests, window, prefix, timeout, failOpen := l.requests, l.window, l.keyPrefix, l.timeout, l.failOpen
	l.mu.RUnlock()

	now := l.now()

	result, err := l.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return slidingWindowScript.Run(opCtx, l.client,
			[]string{fmt.Sprintf("%s:%s", prefix, key)},
			requests,
			window.Milliseconds(),
			now.UnixMilli(),
			l.nonce(),
		).Result()
	})
	if err != nil {
		recordDecision("error")
		if failOpen {
			l.logger.Warn("rate limit store unreachable, failing open",
				observability.String("key", key),
				observability.Error(err),
			)
			recordFallback()
			return l.fallback.Allow(ctx, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res, err := parseScriptResult(result, requests)
	if err != nil {
		return nil, err
	}

	if res.Allowed {
		recordDecision("allowed")
	} else {
		recordDecision("denied")
		res.RetryAfter = res.ResetAt.Sub(now)
		if res.RetryAfter < 0 {
			res.RetryAfter = 0
		}
	}

	return res, nil
}

// Limit returns the configured ceiling and window.
func (l *RedisLimiter) Limit() (int, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.requests, l.window
}

// SetLimit replaces the ceiling and window, used by config hot reload.
// Existing windows keep their recorded entries.
func (l *RedisLimiter) SetLimit(requests int, window time.Duration) error {
	if requests <= 0 {
		return errors.New("requests must be positive")
	}
	if window <= 0 {
		return errors.New("window must be positive")
	}

	l.mu.Lock()
	l.requests = requests
	l.window = window
	l.mu.Unlock()

	l.fallback.SetLimit(requests, window)

	l.logger.Info("rate limit updated",
		observability.Int("requests", requests),
		observability.Duration("window", window),
	)
	return nil
}

// Reset clears the key's window.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	l.mu.RLock()
	prefix, timeout := l.keyPrefix, l.timeout
	l.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := l.client.Del(opCtx, fmt.Sprintf("%s:%s", prefix, key)).Err(); err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	return nil
}

// parseScriptResult decodes the {allowed, remaining, reset_at_ms} reply.
func parseScriptResult(raw interface{}, limit int) (*Result, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected script result: %v", raw)
	}

	nums := make([]int64, 3)
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result element: %v", v)
		}
		nums[i] = n
	}

	return &Result{
		Allowed:   nums[0] == 1,
		Limit:     limit,
		Remaining: int(nums[1]),
		ResetAt:   time.UnixMilli(nums[2]),
	}, nil
}

// Ensure RedisLimiter implements Limiter.
var _ Limiter = (*RedisLimiter)(nil)

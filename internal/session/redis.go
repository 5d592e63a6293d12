package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripgate/tripgate/internal/observability"
)

const (
	// DefaultKeyPrefix is the default session key prefix.
	DefaultKeyPrefix = "session"

	// DefaultTimeout bounds individual store operations.
	DefaultTimeout = 2 * time.Second

	// scanBatchSize is the COUNT hint for SCAN during bulk deletes.
	scanBatchSize = 100
)

// RedisConfig holds redis session store settings.
type RedisConfig struct {
	// KeyPrefix is prepended to every session key.
	KeyPrefix string

	// Timeout bounds individual store operations.
	Timeout time.Duration
}

// redisStore implements Store on a redis backend. Records are stored as
// JSON under "{prefix}:{userID}:{sessionID}" with a per-key TTL.
type redisStore struct {
	client redis.UniversalClient
	config RedisConfig
	logger observability.Logger
	now    func() time.Time
}

// RedisOption is a functional option for the redis session store.
type RedisOption func(*redisStore)

// WithStoreLogger sets the logger for the store.
func WithStoreLogger(logger observability.Logger) RedisOption {
	return func(s *redisStore) {
		s.logger = logger
	}
}

// WithClock overrides the store clock, used by tests.
func WithClock(now func() time.Time) RedisOption {
	return func(s *redisStore) {
		s.now = now
	}
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(client redis.UniversalClient, config RedisConfig, opts ...RedisOption) (Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	s := &redisStore{
		client: client,
		config: config,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// key builds the storage key for a session.
func (s *redisStore) key(userID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", s.config.KeyPrefix, userID, sessionID)
}

// userPattern builds the SCAN pattern matching every session of a user.
func (s *redisStore) userPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", s.config.KeyPrefix, userID)
}

// Create stores a new session record with the given TTL.
func (s *redisStore) Create(ctx context.Context, sess *Session, ttl time.Duration) error {
	if err := validateRecord(sess); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: non-positive ttl", ErrInvalidSession)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(sess.UserID, sess.ID), data, ttl).Err(); err != nil {
		recordOperation("create", "error")
		return fmt.Errorf("store session: %w", err)
	}

	recordOperation("create", "ok")
	return nil
}

// Get loads a session by owner and id.
func (s *redisStore) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(userID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		recordOperation("get", "miss")
		return nil, ErrNotFound
	}
	if err != nil {
		recordOperation("get", "error")
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		recordOperation("get", "error")
		return nil, fmt.Errorf("decode session: %w", err)
	}

	recordOperation("get", "ok")
	return &sess, nil
}

// Update overwrites a session record. A zero ttl keeps the remaining TTL.
func (s *redisStore) Update(ctx context.Context, sess *Session, ttl time.Duration) error {
	if err := validateRecord(sess); err != nil {
		return err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	expiration := ttl
	if ttl == 0 {
		expiration = redis.KeepTTL
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key(sess.UserID, sess.ID), data, expiration).Err(); err != nil {
		recordOperation("update", "error")
		return fmt.Errorf("store session: %w", err)
	}

	recordOperation("update", "ok")
	return nil
}

// Revoke marks a session revoked while keeping its TTL, so clients that
// still hold the session id see a revocation instead of a miss.
func (s *redisStore) Revoke(ctx context.Context, userID, sessionID string) error {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if sess.RevokedAt != nil {
		return nil
	}

	now := s.now().UTC()
	sess.RevokedAt = &now
	return s.Update(ctx, sess, 0)
}

// Destroy removes a session record.
func (s *redisStore) Destroy(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	removed, err := s.client.Del(ctx, s.key(userID, sessionID)).Result()
	if err != nil {
		recordOperation("destroy", "error")
		return fmt.Errorf("destroy session: %w", err)
	}
	if removed == 0 {
		recordOperation("destroy", "miss")
		return ErrNotFound
	}

	recordOperation("destroy", "ok")
	return nil
}

// DestroyUserSessions removes every session belonging to the user.
func (s *redisStore) DestroyUserSessions(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.userPattern(userID), scanBatchSize).Result()
		if err != nil {
			recordOperation("destroy_all", "error")
			return removed, fmt.Errorf("scan sessions: %w", err)
		}

		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				recordOperation("destroy_all", "error")
				return removed, fmt.Errorf("destroy sessions: %w", err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug("destroyed user sessions",
		observability.String("user_id", userID),
		observability.Int("count", removed),
	)

	recordOperation("destroy_all", "ok")
	return removed, nil
}

// FindByDevice returns the user's active session for a device. The scan
// stays cheap because keys are already narrowed to one user.
func (s *redisStore) FindByDevice(ctx context.Context, userID, deviceID string) (*Session, error) {
	if userID == "" || deviceID == "" {
		return nil, ErrNotFound
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	now := s.now()

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(scanCtx, cursor, s.userPattern(userID), scanBatchSize).Result()
		if err != nil {
			recordOperation("find_by_device", "error")
			return nil, fmt.Errorf("scan sessions: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(scanCtx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				recordOperation("find_by_device", "error")
				return nil, fmt.Errorf("load session: %w", err)
			}

			var sess Session
			if err := json.Unmarshal(data, &sess); err != nil {
				s.logger.Warn("skipping undecodable session record",
					observability.String("key", key),
					observability.Error(err),
				)
				continue
			}

			if sess.DeviceID == deviceID && sess.Active(now) {
				recordOperation("find_by_device", "ok")
				return &sess, nil
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	recordOperation("find_by_device", "miss")
	return nil, ErrNotFound
}

// validateRecord rejects records that cannot be keyed.
func validateRecord(sess *Session) error {
	if sess == nil {
		return ErrInvalidSession
	}
	if sess.ID == "" || sess.UserID == "" {
		return fmt.Errorf("%w: missing id or user id", ErrInvalidSession)
	}
	return nil
}

// Ensure redisStore implements Store.
var _ Store = (*redisStore)(nil)

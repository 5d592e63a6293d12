package auth

import (
	"context"
	"errors"
	"time"

	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/session"
)

// defaultBindTimeout bounds a single session lookup.
const defaultBindTimeout = time.Second

// SessionBinder attaches the caller's device session to the request.
// Binding is advisory: a missing, revoked, or unreadable session never
// fails the request, it only means no session context is available.
type SessionBinder struct {
	store   session.Store
	timeout time.Duration
	logger  observability.Logger
}

// BinderOption is a functional option for the session binder.
type BinderOption func(*SessionBinder)

// WithBindTimeout bounds a single session lookup.
func WithBindTimeout(timeout time.Duration) BinderOption {
	return func(b *SessionBinder) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithBinderLogger sets the logger for the binder.
func WithBinderLogger(logger observability.Logger) BinderOption {
	return func(b *SessionBinder) {
		b.logger = logger
	}
}

// NewSessionBinder creates a session binder over the given store.
func NewSessionBinder(store session.Store, opts ...BinderOption) (*SessionBinder, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}

	b := &SessionBinder{
		store:   store,
		timeout: defaultBindTimeout,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Bind looks up the user's active session for the presented device id.
// Returns nil when no device id was presented or no session matches.
func (b *SessionBinder) Bind(ctx context.Context, userID, deviceID string) *session.Session {
	if deviceID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	sess, err := b.store.FindByDevice(ctx, userID, deviceID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		b.logger.Warn("session binding failed",
			observability.String("user_id", userID),
			observability.String("device_id", deviceID),
			observability.Error(err),
		)
		return nil
	}

	return sess
}

// Package session provides the TTL-backed device session store.
// One record is kept per session id; the storage key embeds the owning
// user id so bulk revocation can find every session for a user.
package session

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidSession indicates a session record missing required fields.
	ErrInvalidSession = errors.New("invalid session record")
)

// Session is a device session record. It is created at login (outside
// the gateway core), read during request handling, and destroyed on
// logout or revocation.
type Session struct {
	// ID is the session id.
	ID string `json:"id"`

	// UserID is the owning account id.
	UserID string `json:"userId"`

	// DeviceID identifies the device the session was established on.
	DeviceID string `json:"deviceId"`

	// CreatedAt is when the session was established.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is the session expiry.
	ExpiresAt time.Time `json:"expiresAt"`

	// RevokedAt is set when the session has been explicitly revoked.
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the session is usable: not revoked and not
// past its expiry.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// Store is the session store contract.
type Store interface {
	// Create stores a new session record with the given TTL.
	Create(ctx context.Context, sess *Session, ttl time.Duration) error

	// Get loads a session by owner and id. Returns ErrNotFound when the
	// record does not exist or its TTL has elapsed.
	Get(ctx context.Context, userID, sessionID string) (*Session, error)

	// Update overwrites a session record. A zero ttl keeps the key's
	// remaining TTL.
	Update(ctx context.Context, sess *Session, ttl time.Duration) error

	// Revoke marks a session revoked without shortening its TTL, so the
	// revocation stays visible until the record naturally expires.
	Revoke(ctx context.Context, userID, sessionID string) error

	// Destroy removes a session record. Returns ErrNotFound when no
	// record existed.
	Destroy(ctx context.Context, userID, sessionID string) error

	// DestroyUserSessions removes every session belonging to the user
	// and returns how many were removed.
	DestroyUserSessions(ctx context.Context, userID string) (int, error)

	// FindByDevice returns the user's active session for the given
	// device, or ErrNotFound when none exists.
	FindByDevice(ctx context.Context, userID, deviceID string) (*Session, error)
}

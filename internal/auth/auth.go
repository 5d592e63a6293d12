// Package auth implements the request authentication pipeline: bearer
// token extraction and verification, account resolution, subscription
// tier enforcement, and advisory device session binding.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Authentication errors.
var (
	// ErrNoToken indicates the request carried no Authorization header.
	ErrNoToken = errors.New("no bearer token")

	// ErrMalformedHeader indicates an Authorization header that is not
	// exactly "Bearer <token>".
	ErrMalformedHeader = errors.New("malformed authorization header")

	// ErrUserNotFound indicates the token subject has no account.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserDeleted indicates the token subject's account was soft
	// deleted. Denied with the same status as ErrUserNotFound but a
	// distinct message; the caller holds a valid token for the subject,
	// so naming the deletion reveals nothing new.
	ErrUserDeleted = errors.New("account deleted")
)

// bearerScheme is the only accepted Authorization scheme, matched
// case-sensitively.
const bearerScheme = "Bearer"

// ExtractBearerToken pulls the token out of an Authorization header.
// The header must be exactly two space-separated parts with a "Bearer"
// scheme; anything else is rejected rather than repaired.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
		return "", ErrMalformedHeader
	}

	return parts[1], nil
}

// User is a resolved account with the fields request handling needs.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Tier      Tier   `json:"tier"`
	Timezone  string `json:"timezone,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// UserResolver loads the account behind a verified token subject.
type UserResolver interface {
	// Resolve returns the account for the given id. Missing accounts
	// yield ErrUserNotFound, soft-deleted ones ErrUserDeleted.
	Resolve(ctx context.Context, userID string) (*User, error)
}

package apierror

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindTable(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
		code   string
	}{
		{KindBadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{KindUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{KindInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{KindTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{KindSessionRevoked, http.StatusUnauthorized, "SESSION_REVOKED"},
		{KindForbidden, http.StatusForbidden, "FORBIDDEN"},
		{KindSubscriptionRequired, http.StatusForbidden, "SUBSCRIPTION_REQUIRED"},
		{KindQuotaExceeded, http.StatusForbidden, "QUOTA_EXCEEDED"},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND"},
		{KindConflict, http.StatusConflict, "CONFLICT"},
		{KindValidation, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{KindRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{KindServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			// The mapping must not depend on message content.
			for _, msg := range []string{"", "some message", "another"} {
				e := New(tt.kind, msg)
				assert.Equal(t, tt.status, e.Status())
				assert.Equal(t, tt.code, e.Code())
			}
		})
	}
}

func TestEveryKindMapsExactlyOnce(t *testing.T) {
	seen := make(map[string]Kind)
	for kind, m := range kindTable {
		prev, dup := seen[m.code]
		assert.Falsef(t, dup, "code %s shared by %s and %s", m.code, prev, kind)
		seen[m.code] = kind
	}
	assert.Len(t, kindTable, 14)
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	e := Wrap(KindInternal, "internal server error", cause)

	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "connection reset")
	assert.False(t, e.Operational())
}

func TestOperational(t *testing.T) {
	assert.True(t, Unauthorized("no token").Operational())
	assert.True(t, RateLimited(time.Second).Operational())
	assert.False(t, Internal(errors.New("boom")).Operational())
	assert.False(t, Unavailable("redis down").Operational())
}

func TestSubscriptionRequired(t *testing.T) {
	e := SubscriptionRequired("route optimization", "pro")

	assert.Equal(t, http.StatusForbidden, e.Status())
	assert.Equal(t, "SUBSCRIPTION_REQUIRED", e.Code())
	assert.Equal(t, "pro", e.Details["requiredTier"])
	assert.Equal(t, "route optimization", e.Details["feature"])
	assert.Contains(t, e.Message, "pro")
}

func TestConflictField(t *testing.T) {
	e := Conflict("email already exists", "email")
	assert.Equal(t, "email", e.Details["field"])

	noField := Conflict("already exists", "")
	assert.Nil(t, noField.Details)
}

func TestRateLimited(t *testing.T) {
	e := RateLimited(42 * time.Second)
	assert.Equal(t, http.StatusTooManyRequests, e.Status())
	assert.Equal(t, 42*time.Second, e.RetryAfter)
}

func TestWithDetail(t *testing.T) {
	e := Forbidden("nope").WithDetail("resource", "trip")
	require.NotNil(t, e.Details)
	assert.Equal(t, "trip", e.Details["resource"])
}

func TestUnknownKindDefaults(t *testing.T) {
	e := New(Kind("mystery"), "what")
	assert.Equal(t, http.StatusInternalServerError, e.Status())
	assert.Equal(t, "INTERNAL_ERROR", e.Code())
}

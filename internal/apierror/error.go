// Package apierror defines the client-facing error taxonomy for tripgate.
// Every failure in the gateway is normalized into an Error carrying a
// closed kind, a fixed HTTP status, and a stable machine-readable code.
package apierror

import (
	"fmt"
	"net/http"
	"time"
)

// Kind identifies a class of client-facing error.
type Kind string

// The closed set of error kinds.
const (
	KindBadRequest           Kind = "bad_request"
	KindUnauthorized         Kind = "unauthorized"
	KindInvalidToken         Kind = "invalid_token"
	KindTokenExpired         Kind = "token_expired"
	KindSessionRevoked       Kind = "session_revoked"
	KindForbidden            Kind = "forbidden"
	KindSubscriptionRequired Kind = "subscription_required"
	KindQuotaExceeded        Kind = "quota_exceeded"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindValidation           Kind = "validation_error"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindInternal             Kind = "internal_error"
	KindServiceUnavailable   Kind = "service_unavailable"
)

// mapping pairs an HTTP status with a stable client-facing code.
type mapping struct {
	status int
	code   string
}

// kindTable maps every kind to exactly one status/code pair.
var kindTable = map[Kind]mapping{
	KindBadRequest:           {http.StatusBadRequest, "BAD_REQUEST"},
	KindUnauthorized:         {http.StatusUnauthorized, "UNAUTHORIZED"},
	KindInvalidToken:         {http.StatusUnauthorized, "INVALID_TOKEN"},
	KindTokenExpired:         {http.StatusUnauthorized, "TOKEN_EXPIRED"},
	KindSessionRevoked:       {http.StatusUnauthorized, "SESSION_REVOKED"},
	KindForbidden:            {http.StatusForbidden, "FORBIDDEN"},
	KindSubscriptionRequired: {http.StatusForbidden, "SUBSCRIPTION_REQUIRED"},
	KindQuotaExceeded:        {http.StatusForbidden, "QUOTA_EXCEEDED"},
	KindNotFound:             {http.StatusNotFound, "NOT_FOUND"},
	KindConflict:             {http.StatusConflict, "CONFLICT"},
	KindValidation:           {http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	KindRateLimitExceeded:    {http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	KindInternal:             {http.StatusInternalServerError, "INTERNAL_ERROR"},
	KindServiceUnavailable:   {http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
}

// Error is a client-facing error with a fixed status/code mapping.
type Error struct {
	// Kind is the error class.
	Kind Kind

	// Message is the human-readable message.
	Message string

	// Details carries optional structured context (e.g., per-field
	// validation messages, the required subscription tier).
	Details map[string]interface{}

	// RetryAfter, when positive, is surfaced as a Retry-After header.
	RetryAfter time.Duration

	// cause is the wrapped internal error, never serialized to clients.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int {
	if m, ok := kindTable[e.Kind]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// Code returns the stable client-facing code for the error's kind.
func (e *Error) Code() string {
	if m, ok := kindTable[e.Kind]; ok {
		return m.code
	}
	return "INTERNAL_ERROR"
}

// Operational reports whether the error is an expected, client-addressable
// failure (4xx). Operational errors log at warn, the rest at error.
func (e *Error) Operational() bool {
	return e.Status() < http.StatusInternalServerError
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetail returns the error with an added detail entry.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// BadRequest creates a 400 error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// InvalidToken creates a 401 invalid-token error.
func InvalidToken(message string) *Error {
	return New(KindInvalidToken, message)
}

// TokenExpired creates a 401 token-expired error.
func TokenExpired() *Error {
	return New(KindTokenExpired, "token expired")
}

// SessionRevoked creates a 401 session-revoked error.
func SessionRevoked() *Error {
	return New(KindSessionRevoked, "session revoked")
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// SubscriptionRequired creates a 403 error naming the feature and the
// lowest tier that satisfies the requirement.
func SubscriptionRequired(feature, requiredTier string) *Error {
	e := New(KindSubscriptionRequired,
		fmt.Sprintf("%s requires the %s plan or higher", feature, requiredTier))
	e.Details = map[string]interface{}{
		"feature":      feature,
		"requiredTier": requiredTier,
	}
	return e
}

// NotFound creates a 404 error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Conflict creates a 409 error. A non-empty field is recorded in details.
func Conflict(message, field string) *Error {
	e := New(KindConflict, message)
	if field != "" {
		e.Details = map[string]interface{}{"field": field}
	}
	return e
}

// Validation creates a 422 error aggregating per-field message lists.
func Validation(fields map[string][]string) *Error {
	e := New(KindValidation, "validation failed")
	e.Details = map[string]interface{}{"errors": fields}
	return e
}

// RateLimited creates a 429 error carrying the time until capacity frees.
func RateLimited(retryAfter time.Duration) *Error {
	e := New(KindRateLimitExceeded, "rate limit exceeded")
	e.RetryAfter = retryAfter
	return e
}

// Internal creates a 500 error wrapping an unexpected failure.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal server error", cause)
}

// Unavailable creates a 503 error.
func Unavailable(message string) *Error {
	return New(KindServiceUnavailable, message)
}

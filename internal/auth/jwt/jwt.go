// Package jwt wraps bearer token verification and signing for tripgate.
// Tokens are HS256-signed with registered claims only; the gateway treats
// verification as a primitive and never inspects token internals elsewhere.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/tripgate/tripgate/internal/observability"
)

// Verification errors.
var (
	// ErrEmptyToken indicates an empty token string.
	ErrEmptyToken = errors.New("empty token")

	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the verified claims payload of a bearer token.
type Claims struct {
	// Subject is the account id the token was issued for.
	Subject string

	// Issuer identifies the token issuer.
	Issuer string

	// ExpiresAt is the token expiry.
	ExpiresAt time.Time
}

// Config holds verification settings.
type Config struct {
	// Secret is the HS256 signing secret.
	Secret string

	// Issuer, when non-empty, must match the token's iss claim.
	Issuer string

	// ClockSkew is the allowed leeway for expiry checks.
	ClockSkew time.Duration
}

// Verifier validates bearer tokens and returns their claims.
type Verifier interface {
	// Verify validates a token's signature and expiry.
	Verify(ctx context.Context, token string) (*Claims, error)
}

// verifier implements Verifier on top of golang-jwt.
type verifier struct {
	config *Config
	logger observability.Logger
}

// VerifierOption is a functional option for the verifier.
type VerifierOption func(*verifier)

// WithVerifierLogger sets the logger for the verifier.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a new token verifier.
func NewVerifier(config *Config, opts ...VerifierOption) (Verifier, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Secret == "" {
		return nil, errors.New("signing secret is required")
	}

	v := &verifier{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Verify validates a token's signature and expiry.
func (v *verifier) Verify(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	parseOpts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(v.config.ClockSkew),
	}
	if v.config.Issuer != "" {
		parseOpts = append(parseOpts, jwtlib.WithIssuer(v.config.Issuer))
	}

	var claims jwtlib.RegisteredClaims
	_, err := jwtlib.ParseWithClaims(token, &claims, v.keyFunc, parseOpts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		v.logger.Debug("token verification failed", observability.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	out := &Claims{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

// keyFunc returns the HS256 secret for signature verification.
func (v *verifier) keyFunc(_ *jwtlib.Token) (interface{}, error) {
	return []byte(v.config.Secret), nil
}

// Ensure verifier implements Verifier.
var _ Verifier = (*verifier)(nil)

package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/google/uuid"
)

// Signer issues HS256 bearer tokens. The gateway itself never issues
// tokens on request paths; the signer backs tooling and tests.
type Signer struct {
	config *Config
}

// NewSigner creates a new token signer.
func NewSigner(config *Config) (*Signer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Signer{config: config}, nil
}

// Sign issues a token for the given subject with the given lifetime.
func (s *Signer) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := jwtlib.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.config.Issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

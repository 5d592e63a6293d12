package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/auth/jwt"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/session"
)

// Identity is the outcome of a successful authentication: the resolved
// account, the verified claims, and the bound device session when one
// matched.
type Identity struct {
	User    *User
	Claims  *jwt.Claims
	Session *session.Session
}

// Pipeline runs the authentication steps in order: extract the bearer
// token, verify it, resolve the account, then bind the device session.
// Every denial is an *apierror.Error so the transport layer can map it
// without inspecting causes.
type Pipeline struct {
	verifier jwt.Verifier
	resolver UserResolver
	binder   *SessionBinder
	logger   observability.Logger
}

// PipelineOption is a functional option for the pipeline.
type PipelineOption func(*Pipeline)

// WithSessionBinder enables device session binding.
func WithSessionBinder(binder *SessionBinder) PipelineOption {
	return func(p *Pipeline) {
		p.binder = binder
	}
}

// WithPipelineLogger sets the logger for the pipeline.
func WithPipelineLogger(logger observability.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates an authentication pipeline.
func NewPipeline(verifier jwt.Verifier, resolver UserResolver, opts ...PipelineOption) (*Pipeline, error) {
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	if resolver == nil {
		return nil, errors.New("user resolver is required")
	}

	p := &Pipeline{
		verifier: verifier,
		resolver: resolver,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Authorize authenticates a request. The authorization argument is the
// raw Authorization header; deviceID may be empty. On denial the
// returned error is an *apierror.Error.
func (p *Pipeline) Authorize(ctx context.Context, authorization, deviceID string) (*Identity, error) {
	start := time.Now()

	identity, err := p.run(ctx, authorization, deviceID)
	if err != nil {
		recordAttempt("denied", time.Since(start))
		return nil, err
	}

	recordAttempt("authorized", time.Since(start))
	return identity, nil
}

// AuthorizeOptional authenticates a request when credentials are
// present. Denials that happen before an account is resolved, such as a
// missing or invalid token, yield (nil, nil) so the caller proceeds
// anonymously. Infrastructure failures still surface as errors.
func (p *Pipeline) AuthorizeOptional(ctx context.Context, authorization, deviceID string) (*Identity, error) {
	start := time.Now()

	identity, err := p.run(ctx, authorization, deviceID)
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) && apiErr.Status() == http.StatusUnauthorized {
			recordAttempt("anonymous", time.Since(start))
			return nil, nil
		}
		recordAttempt("denied", time.Since(start))
		return nil, err
	}

	recordAttempt("authorized", time.Since(start))
	return identity, nil
}

// run executes the pipeline steps.
func (p *Pipeline) run(ctx context.Context, authorization, deviceID string) (*Identity, error) {
	token, err := ExtractBearerToken(authorization)
	if errors.Is(err, ErrNoToken) {
		return nil, apierror.Unauthorized("authentication required")
	}
	if err != nil {
		return nil, apierror.Unauthorized("invalid authorization header")
	}

	claims, err := p.verifier.Verify(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apierror.TokenExpired()
		default:
			return nil, apierror.InvalidToken("invalid access token")
		}
	}

	user, err := p.resolver.Resolve(ctx, claims.Subject)
	switch {
	case errors.Is(err, ErrUserDeleted):
		// Same status class as a missing account, distinct message.
		p.logger.Debug("token subject's account was deleted",
			observability.String("subject", claims.Subject),
		)
		return nil, apierror.Unauthorized("account deleted")
	case errors.Is(err, ErrUserNotFound):
		p.logger.Debug("token subject has no account",
			observability.String("subject", claims.Subject),
		)
		return nil, apierror.Unauthorized("user not found")
	case err != nil:
		return nil, apierror.FromError(err)
	}

	identity := &Identity{User: user, Claims: claims}

	if p.binder != nil {
		identity.Session = p.binder.Bind(ctx, user.ID, deviceID)
	}

	return identity, nil
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/auth"
	"github.com/tripgate/tripgate/internal/session"
)

const (
	userKey    = "auth-user"
	sessionKey = "auth-session"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Pipeline runs the authentication steps.
	Pipeline *auth.Pipeline

	// Production suppresses error internals in responses.
	Production bool
}

// RequireAuth returns a middleware that rejects unauthenticated
// requests. On success the resolved user, and the bound session when
// one matched, are attached to the request.
func RequireAuth(config AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := config.Pipeline.Authorize(
			c.Request.Context(),
			c.GetHeader("Authorization"),
			GetDeviceID(c),
		)
		if err != nil {
			AbortWithError(c, err, config.Production)
			return
		}

		attachIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth returns a middleware that authenticates when credentials
// are present but lets anonymous requests through. Only infrastructure
// failures abort the request.
func OptionalAuth(config AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := config.Pipeline.AuthorizeOptional(
			c.Request.Context(),
			c.GetHeader("Authorization"),
			GetDeviceID(c),
		)
		if err != nil {
			AbortWithError(c, err, config.Production)
			return
		}

		if identity != nil {
			attachIdentity(c, identity)
		}
		c.Next()
	}
}

// RequireTier returns a middleware gating a feature to the given tiers.
// It must run after RequireAuth.
func RequireTier(feature string, production bool, accepted ...auth.Tier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			// RequireAuth did not run; treat as unauthenticated rather
			// than leaking a tier hint.
			AbortWithError(c, authRequiredError(), production)
			return
		}

		if err := auth.RequireTier(user.Tier, feature, accepted...); err != nil {
			AbortWithError(c, err, production)
			return
		}

		c.Next()
	}
}

// attachIdentity stores the identity on both the gin context and the
// request context so handlers and downstream code see the same view.
func attachIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(userKey, identity.User)

	ctx := auth.ContextWithUser(c.Request.Context(), identity.User)
	if identity.Session != nil {
		c.Set(sessionKey, identity.Session)
		ctx = auth.ContextWithSession(ctx, identity.Session)
	}
	c.Request = c.Request.WithContext(ctx)
}

// GetUser returns the authenticated user attached to the request.
func GetUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*auth.User)
	return user, ok && user != nil
}

// GetSession returns the bound device session attached to the request.
func GetSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok && sess != nil
}

// authRequiredError is the denial used when tier gating runs without an
// authenticated user.
func authRequiredError() error {
	return apierror.Unauthorized("authentication required")
}

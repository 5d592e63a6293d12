package middleware

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tripgate/tripgate/internal/apierror"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter decides admission. Nil means no limiting.
	Limiter ratelimit.Limiter

	// KeyFunc extracts the limit key. Defaults to the authenticated
	// user id, falling back to the client IP for anonymous requests.
	KeyFunc func(c *gin.Context) string

	// SkipPaths lists paths exempt from limiting.
	SkipPaths []string

	// Logger for limiter failures.
	Logger observability.Logger

	// Production suppresses error internals in responses.
	Production bool
}

// UserKeyFunc keys windows by authenticated user id, falling back to
// the client IP so anonymous traffic is still bounded.
func UserKeyFunc(c *gin.Context) string {
	if user, ok := GetUser(c); ok {
		return "user:" + user.ID
	}
	return "ip:" + c.ClientIP()
}

// RateLimit returns a middleware enforcing the per-user request ceiling.
// It must run after authentication so the window keys on the user.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = ratelimit.NewNoopLimiter()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = UserKeyFunc
	}
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := config.KeyFunc(c)

		result, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, ratelimit.ErrStoreUnavailable) {
				AbortWithError(c, apierror.Unavailable("rate limiting unavailable"), config.Production)
				return
			}
			config.Logger.Error("rate limit check failed",
				observability.String("key", key),
				observability.Error(err),
			)
			AbortWithError(c, err, config.Production)
			return
		}

		if result.Limit >= 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}

		if !result.Allowed {
			config.Logger.Debug("rate limit exceeded",
				observability.String("key", key),
				observability.Int("limit", result.Limit),
			)
			AbortWithError(c, apierror.RateLimited(result.RetryAfter), config.Production)
			return
		}

		c.Next()
	}
}

// Package server assembles the HTTP surface of the gateway: the gin
// router, the middleware chain, and the lifecycle of the underlying
// http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/tripgate/tripgate/internal/auth"
	"github.com/tripgate/tripgate/internal/config"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/ratelimit"
	"github.com/tripgate/tripgate/internal/session"
)

// Server is the gateway HTTP server.
type Server struct {
	config   *config.Config
	logger   observability.Logger
	pipeline *auth.Pipeline
	limiter  ratelimit.Limiter
	sessions session.Store
	redis    redis.UniversalClient

	httpServer *http.Server
}

// Option is a functional option for the server.
type Option func(*Server)

// WithLimiter sets the rate limiter.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithRedisClient sets the redis client used by health checks.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(s *Server) {
		s.redis = client
	}
}

// New creates the gateway server.
func New(
	cfg *config.Config,
	logger observability.Logger,
	pipeline *auth.Pipeline,
	sessions session.Store,
	opts ...Option,
) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if pipeline == nil {
		return nil, errors.New("auth pipeline is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		pipeline: pipeline,
		limiter:  ratelimit.NewNoopLimiter(),
		sessions: sessions,
	}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       cfg.Server.IdleTimeout.Duration(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		observability.String("address", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

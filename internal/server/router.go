package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tripgate/tripgate/internal/auth"
	"github.com/tripgate/tripgate/internal/middleware"
)

// buildRouter assembles the middleware chain and routes.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(s.logger))
	router.Use(middleware.Recovery(s.logger, s.config.Production))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authConfig := middleware.AuthConfig{
		Pipeline:   s.pipeline,
		Production: s.config.Production,
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.RequireAuth(authConfig))
	v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter:    s.limiter,
		Logger:     s.logger,
		Production: s.config.Production,
	}))
	{
		v1.GET("/me", s.handleMe)
		v1.POST("/sessions/logout", s.handleLogout)
		v1.POST("/sessions/logout-all", s.handleLogoutAll)
		v1.POST("/trips/optimize",
			middleware.RequireTier("trip optimization", s.config.Production, auth.TierPro),
			s.handleOptimizeTrip,
		)
	}

	return router
}

package main

import (
	"context"

	"github.com/tripgate/tripgate/internal/config"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/ratelimit"
)

// startConfigWatcher hot-reloads rate limit parameters when the config
// file changes. Other settings require a restart. Returns nil when the
// limiter is disabled or the watch cannot be established; the gateway
// runs fine without hot reload.
func startConfigWatcher(path string, limiter *ratelimit.RedisLimiter, logger observability.Logger) *config.Watcher {
	if limiter == nil {
		return nil
	}

	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
		if !cfg.RateLimit.Enabled {
			logger.Warn("rate limiting cannot be disabled by reload, restart required")
			return
		}
		if err := limiter.SetLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration()); err != nil {
			logger.Warn("rejected reloaded rate limit", observability.Error(err))
		}
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("config watcher unavailable", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("config watcher failed to start", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

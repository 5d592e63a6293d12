// Command gateway runs the tripgate API gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tripgate/tripgate/internal/auth"
	"github.com/tripgate/tripgate/internal/auth/jwt"
	"github.com/tripgate/tripgate/internal/config"
	"github.com/tripgate/tripgate/internal/observability"
	"github.com/tripgate/tripgate/internal/ratelimit"
	"github.com/tripgate/tripgate/internal/server"
	"github.com/tripgate/tripgate/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	databaseURL := flag.String("database-url", os.Getenv("TRIPGATE_DATABASE_URL"), "postgres connection string")
	flag.Parse()

	if err := run(*configPath, *databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, databaseURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout.Duration(),
		ReadTimeout:  cfg.Redis.ReadTimeout.Duration(),
		WriteTimeout: cfg.Redis.WriteTimeout.Duration(),
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable at startup", observability.Error(err))
	}

	if databaseURL == "" {
		return fmt.Errorf("database url is required, set -database-url or TRIPGATE_DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	verifier, err := jwt.NewVerifier(&jwt.Config{
		Secret:    cfg.Auth.Secret,
		Issuer:    cfg.Auth.Issuer,
		ClockSkew: cfg.Auth.ClockSkew.Duration(),
	}, jwt.WithVerifierLogger(logger))
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	resolver, err := auth.NewPostgresResolver(pool,
		auth.WithResolveTimeout(cfg.Auth.ResolveTimeout.Duration()),
		auth.WithResolverLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	sessions, err := session.NewRedisStore(redisClient, session.RedisConfig{
		KeyPrefix: cfg.Session.KeyPrefix,
		Timeout:   cfg.Session.Timeout.Duration(),
	}, session.WithStoreLogger(logger))
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}

	binder, err := auth.NewSessionBinder(sessions, auth.WithBinderLogger(logger))
	if err != nil {
		return fmt.Errorf("create session binder: %w", err)
	}

	pipeline, err := auth.NewPipeline(verifier, resolver,
		auth.WithSessionBinder(binder),
		auth.WithPipelineLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create auth pipeline: %w", err)
	}

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	var redisLimiter *ratelimit.RedisLimiter
	if cfg.RateLimit.Enabled {
		redisLimiter, err = ratelimit.NewRedisLimiter(redisClient, ratelimit.RedisConfig{
			Requests:  cfg.RateLimit.Requests,
			Window:    cfg.RateLimit.Window.Duration(),
			KeyPrefix: cfg.RateLimit.KeyPrefix,
			Timeout:   cfg.RateLimit.Timeout.Duration(),
			FailOpen:  cfg.RateLimit.FailurePolicy == config.FailOpen,
		}, ratelimit.WithLimiterLogger(logger))
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		limiter = redisLimiter
	}

	srv, err := server.New(cfg, logger, pipeline, sessions,
		server.WithLimiter(limiter),
		server.WithRedisClient(redisClient),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	watcher := startConfigWatcher(configPath, redisLimiter, logger)
	if watcher != nil {
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

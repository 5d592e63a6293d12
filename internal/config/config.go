// Package config provides configuration management for tripgate.
// Configuration is loaded from a YAML file with environment variable
// overrides taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Failure policies for unreachable shared-store dependencies.
const (
	// FailOpen allows the request when the backing store is unreachable.
	FailOpen = "open"

	// FailClosed denies the request when the backing store is unreachable.
	FailClosed = "closed"
)

// Config holds all configuration settings for the gateway.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Logging settings
	Log LogConfig `yaml:"log"`

	// Redis settings shared by the rate limiter and session store
	Redis RedisConfig `yaml:"redis"`

	// Auth settings
	Auth AuthConfig `yaml:"auth"`

	// Rate limiting settings
	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Session store settings
	Session SessionConfig `yaml:"session"`

	// Production suppresses internal error details and stack traces
	// in client responses.
	Production bool `yaml:"production"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address      string   `yaml:"address"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	PoolSize     int      `yaml:"poolSize"`
	MinIdleConns int      `yaml:"minIdleConns"`
	DialTimeout  Duration `yaml:"dialTimeout"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
}

// AuthConfig holds token verification and user resolution settings.
type AuthConfig struct {
	// Secret is the HS256 signing secret for bearer tokens.
	Secret string `yaml:"secret"`

	// Issuer is the expected token issuer. Empty disables the check.
	Issuer string `yaml:"issuer"`

	// ClockSkew is the allowed clock skew for expiry checks.
	ClockSkew Duration `yaml:"clockSkew"`

	// ResolveTimeout bounds each user resolution call.
	ResolveTimeout Duration `yaml:"resolveTimeout"`
}

// RateLimitConfig holds sliding-window rate limiter settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Requests is the maximum number of requests allowed in the window.
	Requests int `yaml:"requests"`

	// Window is the trailing time window for the limit.
	Window Duration `yaml:"window"`

	// KeyPrefix namespaces limiter keys in the shared store.
	KeyPrefix string `yaml:"keyPrefix"`

	// FailurePolicy is applied when the store is unreachable or times
	// out: "open" (allow via local fallback) or "closed" (deny).
	FailurePolicy string `yaml:"failurePolicy"`

	// Timeout bounds each store round trip.
	Timeout Duration `yaml:"timeout"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	// TTL is the default session lifetime.
	TTL Duration `yaml:"ttl"`

	// KeyPrefix namespaces session keys in the shared store.
	KeyPrefix string `yaml:"keyPrefix"`

	// Timeout bounds each store round trip.
	Timeout Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Redis: RedisConfig{
			Address:      "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  Duration(5 * time.Second),
			ReadTimeout:  Duration(3 * time.Second),
			WriteTimeout: Duration(3 * time.Second),
		},
		Auth: AuthConfig{
			ClockSkew:      Duration(30 * time.Second),
			ResolveTimeout: Duration(2 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Requests:      100,
			Window:        Duration(time.Minute),
			KeyPrefix:     "ratelimit",
			FailurePolicy: FailOpen,
			Timeout:       Duration(500 * time.Millisecond),
		},
		Session: SessionConfig{
			TTL:       Duration(30 * 24 * time.Hour),
			KeyPrefix: "session",
			Timeout:   Duration(2 * time.Second),
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit requests must be positive, got %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window.Duration() <= 0 {
			return fmt.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window.Duration())
		}
		switch c.RateLimit.FailurePolicy {
		case FailOpen, FailClosed:
		default:
			return fmt.Errorf("rate limit failure policy must be %q or %q, got %q",
				FailOpen, FailClosed, c.RateLimit.FailurePolicy)
		}
	}
	if c.Session.TTL.Duration() <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.Session.TTL.Duration())
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over file values.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TRIPGATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRIPGATE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TRIPGATE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TRIPGATE_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("TRIPGATE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TRIPGATE_AUTH_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("TRIPGATE_PRODUCTION"); v != "" {
		production, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRIPGATE_PRODUCTION: %w", err)
		}
		c.Production = production
	}
	return nil
}

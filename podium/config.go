// Copyright (C) 2025 Podium Labs, Inc.
// See LICENSE for copying information.

package podium

import (
	"time"

	"github.com/podiumhq/podium/apierr"
	"github.com/podiumhq/podium/events"
	"github.com/podiumhq/podium/gateway/ratelimit"
	"github.com/podiumhq/podium/scoring"
	"github.com/podiumhq/podium/worker"
)

// Config is the full process configuration, populated from flags and
// environment by the command layer.
type Config struct {
	// Address is the public HTTP listening address.
	Address string `mapstructure:"address"`
	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `mapstructure:"database_url"`
	// CacheURL is the Redis connection string shared by the scoring store,
	// auth cache, rate limiter and usage counters.
	CacheURL string `mapstructure:"cache_url"`
	// StreamURL is the NATS connection string.
	StreamURL string `mapstructure:"stream_url"`
	// InternalSecret guards the internal control-plane routes; empty
	// disables the internal plane.
	InternalSecret string `mapstructure:"internal_secret"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// AuthCacheTTL bounds the api-key validation cache, max five minutes.
	AuthCacheTTL time.Duration `mapstructure:"auth_cache_ttl"`
	// RequestTimeout is the per-request deadline on the public plane.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// UsageRetention bounds the live usage counter keys.
	UsageRetention time.Duration `mapstructure:"usage_retention"`

	RateLimit ratelimit.Config       `mapstructure:"rate_limit"`
	Publisher events.PublisherConfig `mapstructure:"publisher"`
	Worker    worker.Config          `mapstructure:"worker"`
	Resetter  scoring.ResetterConfig `mapstructure:"resetter"`
}

// DefaultConfig returns the process defaults; only the connection strings
// and the internal secret must come from the environment.
func DefaultConfig() Config {
	return Config{
		Address:        ":8080",
		DatabaseURL:    "postgres://postgres@localhost:5432/podium?sslmode=disable",
		CacheURL:       "redis://localhost:6379/0",
		StreamURL:      "nats://localhost:4222",
		LogLevel:       "info",
		AuthCacheTTL:   5 * time.Minute,
		RequestTimeout: 2 * time.Second,
		UsageRetention: 90 * 24 * time.Hour,
		RateLimit:      ratelimit.DefaultConfig(),
		Publisher:      events.DefaultPublisherConfig(),
		Worker:         worker.DefaultConfig(),
		Resetter:       scoring.ResetterConfig{Interval: time.Minute, Enabled: true},
	}
}

// Verify checks the configuration is complete enough to start.
func (config Config) Verify() error {
	switch {
	case config.DatabaseURL == "":
		return apierr.ErrBadRequest.New("database url is required")
	case config.CacheURL == "":
		return apierr.ErrBadRequest.New("cache url is required")
	case config.StreamURL == "":
		return apierr.ErrBadRequest.New("stream url is required")
	}
	return nil
}

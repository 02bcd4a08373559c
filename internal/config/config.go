// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package config provides layered configuration for Showreel using Koanf v2.
//
// Precedence (highest wins): environment variables > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tomtom215/showreel/internal/validation"
)

// Validation errors surfaced by Config.Validate.
var (
	// ErrMissingAPIKey indicates no TMDB API key was configured.
	ErrMissingAPIKey = errors.New("tmdb api key is required")

	// ErrInvalidBaseURL indicates the TMDB base URL could not be parsed.
	ErrInvalidBaseURL = errors.New("tmdb base url is invalid")

	// ErrInvalidWorkers indicates the fetch worker count is out of range.
	ErrInvalidWorkers = errors.New("fetch workers must be between 1 and 64")
)

// Config is the root configuration for the Showreel server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	TMDB      TMDBConfig      `koanf:"tmdb"`
	Cache     CacheConfig     `koanf:"cache"`
	Fetch     FetchConfig     `koanf:"fetch"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// CatalogConfig locates the offline-built catalog and similarity artifacts.
// Each path is tried as-is and with a ".gz" suffix; whichever exists is
// loaded, decompressing transparently.
type CatalogConfig struct {
	ItemsPath  string `koanf:"items_path"`
	MatrixPath string `koanf:"matrix_path"`
}

// TMDBConfig holds settings for the remote poster lookup API.
type TMDBConfig struct {
	BaseURL      string        `koanf:"base_url"`
	ImageBaseURL string        `koanf:"image_base_url"`
	APIKey       string        `koanf:"api_key"`
	Language     string        `koanf:"language"`
	Timeout      time.Duration `koanf:"timeout"`

	// MaxRetries bounds attempts for a single lookup (default 3).
	MaxRetries int `koanf:"max_retries" validate:"gte=1,lte=10"`

	// BackoffCap bounds the exponential 429 backoff (default 10s).
	BackoffCap time.Duration `koanf:"backoff_cap"`

	// NetworkRetryDelay is the initial wait after a network-level
	// failure; successive waits grow exponentially up to BackoffCap.
	NetworkRetryDelay time.Duration `koanf:"network_retry_delay"`

	// BreakerEnabled wraps the client in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// CacheConfig holds settings for the durable poster URL cache.
type CacheConfig struct {
	// Path is the JSON backing file for resolved poster URLs.
	Path string `koanf:"path"`

	// FlushEvery flushes the cache to disk after this many resolved
	// fetches (default 2). Flush also always happens at shutdown.
	FlushEvery int `koanf:"flush_every" validate:"gte=1"`

	// AbsentTTL expires resolved-absent entries so a transient outage
	// is not masked forever. Zero means absent entries never expire,
	// matching the historical behavior; the only remedy then is a
	// manual per-key delete.
	AbsentTTL time.Duration `koanf:"absent_ttl"`

	// FlushInterval is how often the background flusher persists the
	// cache, independent of milestone flushes.
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// FetchConfig holds batch fetch orchestration settings.
type FetchConfig struct {
	// Workers caps concurrent poster fetches (default 5).
	Workers int `koanf:"workers"`

	// Stagger paces successive dispatches to avoid bursting the API.
	Stagger time.Duration `koanf:"stagger"`

	// BatchTimeout bounds an entire FetchAll call. Keys unresolved at
	// the deadline are reported as permanently failed.
	BatchTimeout time.Duration `koanf:"batch_timeout"`
}

// RecommendConfig holds recommendation settings.
type RecommendConfig struct {
	// DefaultK is the number of similar titles returned when the
	// request does not specify one.
	DefaultK int `koanf:"default_k" validate:"gte=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for structural and semantic errors.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if c.TMDB.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, err := url.ParseRequestURI(c.TMDB.BaseURL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.TMDB.BaseURL)
	}
	if _, err := url.ParseRequestURI(c.TMDB.ImageBaseURL); err != nil {
		return fmt.Errorf("%w: image base %q", ErrInvalidBaseURL, c.TMDB.ImageBaseURL)
	}
	if c.Fetch.Workers < 1 || c.Fetch.Workers > 64 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Fetch.Workers)
	}

	return nil
}

// Addr returns the host:port listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/showreel/config.yaml",
	"/etc/showreel/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8343,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Catalog: CatalogConfig{
			ItemsPath:  "/data/movie_list.json",
			MatrixPath: "/data/similarity.json",
		},
		TMDB: TMDBConfig{
			BaseURL:           "https://api.themoviedb.org/3/movie",
			ImageBaseURL:      "https://image.tmdb.org/t/p",
			APIKey:            "",
			Language:          "en-US",
			Timeout:           10 * time.Second,
			MaxRetries:        3,
			BackoffCap:        10 * time.Second,
			NetworkRetryDelay: time.Second,
			BreakerEnabled:    true,
		},
		Cache: CacheConfig{
			Path:          "/data/poster_cache.json",
			FlushEvery:    2,
			AbsentTTL:     0, // Never expire; historical behavior
			FlushInterval: time.Minute,
		},
		Fetch: FetchConfig{
			Workers:      5,
			Stagger:      150 * time.Millisecond,
			BatchTimeout: 30 * time.Second,
		},
		Recommend: RecommendConfig{
			DefaultK: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when supplied via env vars.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string and are skipped, preventing random
// environment variables from polluting the config.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"cors_origins":          "server.cors_origins",
		"rate_limit_requests":   "server.rate_limit_reqs",
		"rate_limit_window":     "server.rate_limit_window",

		"catalog_items_path":  "catalog.items_path",
		"catalog_matrix_path": "catalog.matrix_path",

		"tmdb_base_url":            "tmdb.base_url",
		"tmdb_image_base_url":      "tmdb.image_base_url",
		"tmdb_api_key":             "tmdb.api_key",
		"tmdb_language":            "tmdb.language",
		"tmdb_timeout":             "tmdb.timeout",
		"tmdb_max_retries":         "tmdb.max_retries",
		"tmdb_backoff_cap":         "tmdb.backoff_cap",
		"tmdb_network_retry_delay": "tmdb.network_retry_delay",
		"tmdb_breaker_enabled":     "tmdb.breaker_enabled",

		"cache_path":           "cache.path",
		"cache_flush_every":    "cache.flush_every",
		"cache_absent_ttl":     "cache.absent_ttl",
		"cache_flush_interval": "cache.flush_interval",

		"fetch_workers":       "fetch.workers",
		"fetch_stagger":       "fetch.stagger",
		"fetch_batch_timeout": "fetch.batch_timeout",

		"recommend_default_k": "recommend.default_k",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

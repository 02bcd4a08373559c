// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package main is the entry point for the Showreel server.
//
// Showreel serves content-based movie recommendations from an
// offline-built similarity matrix and resolves poster artwork through
// the TMDB API, with a durable on-disk cache in front of every remote
// lookup.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config.yaml and
//     environment variables (Koanf v2)
//  2. Catalog: the movie list and similarity matrix artifacts, loaded
//     from plain or gzip-compressed JSON
//  3. Poster cache: the JSON-backed poster URL cache
//  4. Poster client and batcher: rate-aware TMDB fetch pipeline
//  5. HTTP server: REST API under /api/v1 plus /metrics
//  6. Supervisor tree: runs the HTTP server and periodic cache flushing
//     with failure isolation (suture)
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file, built-in
// defaults. TMDB_API_KEY is the only required setting.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests (10s timeout) and
// flushes the poster cache a final time.
//
// # Example Usage
//
//	export TMDB_API_KEY=your-tmdb-api-key
//	export CATALOG_ITEMS_PATH=data/movie_list.json
//	export CATALOG_MATRIX_PATH=data/similarity.json
//	./showreel
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/showreel/internal/api"
	"github.com/tomtom215/showreel/internal/catalog"
	"github.com/tomtom215/showreel/internal/config"
	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/poster"
	"github.com/tomtom215/showreel/internal/recommend"
	"github.com/tomtom215/showreel/internal/supervisor"
	"github.com/tomtom215/showreel/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("items_path", cfg.Catalog.ItemsPath).
		Str("cache_path", cfg.Cache.Path).
		Int("fetch_workers", cfg.Fetch.Workers).
		Msg("Configuration loaded")

	// The catalog is mandatory; without it there is nothing to serve.
	index, err := catalog.Load(cfg.Catalog.ItemsPath, cfg.Catalog.MatrixPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load catalog artifacts")
	}
	logging.Info().Int("titles", index.Len()).Msg("Catalog loaded")

	// The poster cache is best-effort; a missing or corrupt file just
	// means a cold start.
	cache := poster.NewCache(cfg.Cache.Path, cfg.Cache.FlushEvery, cfg.Cache.AbsentTTL)
	loaded := cache.Load()
	logging.Info().Int("entries", loaded).Msg("Poster cache loaded")

	client := poster.NewClient(&cfg.TMDB, cache)
	batcher := poster.NewBatcher(&cfg.Fetch, client)
	service := recommend.NewService(index, batcher, cfg.Recommend.DefaultK)

	handler := api.NewHandler(service, cache)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	slogLogger := slog.New(logging.NewSlogHandler())

	tree := supervisor.NewTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewCacheFlushService(cache, cfg.Cache.FlushInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// The flush service already flushed on shutdown; this covers the
	// path where the supervisor never started it.
	if err := cache.Flush(); err != nil {
		logging.Error().Err(err).Msg("Final poster cache flush failed")
	}

	logging.Info().Msg("Application stopped gracefully")
}

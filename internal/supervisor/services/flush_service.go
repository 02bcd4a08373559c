// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package services

import (
	"context"
	"time"

	"github.com/tomtom215/showreel/internal/logging"
)

// Flusher is the cache-side surface the flush service needs.
type Flusher interface {
	Flush() error
}

// CacheFlushService periodically persists the poster cache, so a crash
// between milestone flushes loses at most one interval of resolutions.
// A final flush runs on shutdown.
type CacheFlushService struct {
	cache    Flusher
	interval time.Duration
	name     string
}

// NewCacheFlushService creates a periodic cache flusher.
func NewCacheFlushService(cache Flusher, interval time.Duration) *CacheFlushService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CacheFlushService{
		cache:    cache,
		interval: interval,
		name:     "cache-flusher",
	}
}

// Serve implements suture.Service.
func (s *CacheFlushService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.cache.Flush(); err != nil {
				logging.Warn().Err(err).Msg("Periodic poster cache flush failed")
			}

		case <-ctx.Done():
			if err := s.cache.Flush(); err != nil {
				logging.Warn().Err(err).Msg("Shutdown poster cache flush failed")
			}
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *CacheFlushService) String() string {
	return s.name
}

// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package poster

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/metrics"
)

// Cache is a durable, thread-safe store of resolved poster lookups.
//
// Each key (stringified movie ID) is in one of three states:
//   - unknown: absent from the store, never looked up
//   - resolved-present: a poster URL string
//   - resolved-absent: nil, meaning "looked up, no poster exists"
//
// Distinguishing resolved-absent from unknown is what prevents repeated
// fruitless lookups while still caching real resolutions indefinitely.
//
// The backing file is a flat JSON object mapping key to URL-or-null. It
// is flushed after every flushEvery resolved fetches and at shutdown;
// flush failures are logged, never fatal, and the in-memory state stays
// authoritative until the next successful flush.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*string

	// absentAt records when absent entries were resolved, for TTL
	// expiry. In-memory only; the durable format stays a flat mapping.
	absentAt map[string]time.Time

	path       string
	flushEvery int
	absentTTL  time.Duration

	// resolved counts Puts since the last milestone flush.
	resolved int

	// flushMu serializes file writes so concurrent flushes cannot
	// interleave.
	flushMu sync.Mutex
}

// NewCache creates a cache backed by the given file path.
// flushEvery controls the milestone flush cadence; absentTTL of zero
// means resolved-absent entries never expire.
func NewCache(path string, flushEvery int, absentTTL time.Duration) *Cache {
	if flushEvery < 1 {
		flushEvery = 1
	}
	return &Cache{
		entries:    make(map[string]*string),
		absentAt:   make(map[string]time.Time),
		path:       path,
		flushEvery: flushEvery,
		absentTTL:  absentTTL,
	}
}

// Load deserializes the backing file if present and returns the number
// of entries loaded. A missing, unreadable, or corrupt file is treated
// as an empty cache and logged; it is never fatal.
func (c *Cache) Load() int {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", c.path).Msg("Poster cache unreadable, starting empty")
		}
		return 0
	}

	entries := make(map[string]*string)
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.Warn().Err(err).Str("path", c.path).Msg("Poster cache corrupt, starting empty")
		return 0
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(len(entries)))
	logging.Info().Int("entries", len(entries)).Str("path", c.path).Msg("Poster cache loaded")
	return len(entries)
}

// Get returns the cached value for key. found is false for unknown keys
// and for absent entries that have outlived the configured TTL.
func (c *Cache) Get(key string) (*string, bool) {
	c.mu.RLock()
	value, found := c.entries[key]
	resolvedAt, hasStamp := c.absentAt[key]
	c.mu.RUnlock()

	if !found {
		metrics.CacheMisses.Inc()
		return nil, false
	}

	if value == nil && c.absentTTL > 0 && hasStamp && time.Since(resolvedAt) > c.absentTTL {
		c.mu.Lock()
		delete(c.entries, key)
		delete(c.absentAt, key)
		c.mu.Unlock()
		metrics.CacheMisses.Inc()
		return nil, false
	}

	metrics.CacheHits.Inc()
	return value, true
}

// Put upserts a resolved entry. A nil value records resolved-absent.
// Every flushEvery-th Put triggers a milestone flush.
func (c *Cache) Put(key string, value *string) {
	c.mu.Lock()
	c.entries[key] = value
	if value == nil {
		c.absentAt[key] = time.Now()
	} else {
		delete(c.absentAt, key)
	}
	c.resolved++
	flush := c.resolved%c.flushEvery == 0
	size := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(size))

	if flush {
		if err := c.Flush(); err != nil {
			logging.Warn().Err(err).Msg("Milestone poster cache flush failed")
		}
	}
}

// Delete removes one entry, the manual un-stick mechanism for keys that
// were cached as resolved-absent after a permanent failure.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	delete(c.absentAt, key)
	size := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(size))
}

// Clear atomically empties the store and removes the backing file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]*string)
	c.absentAt = make(map[string]time.Time)
	c.resolved = 0
	c.mu.Unlock()

	metrics.CacheEntries.Set(0)

	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Flush serializes a snapshot of the current entries to the backing
// file. Concurrent calls are serialized; the write goes through a temp
// file and rename so a crash cannot leave a half-written cache.
func (c *Cache) Flush() error {
	c.mu.RLock()
	snapshot := make(map[string]*string, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.CacheFlushes.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		metrics.CacheFlushes.WithLabelValues("error").Inc()
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		metrics.CacheFlushes.WithLabelValues("error").Inc()
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		metrics.CacheFlushes.WithLabelValues("error").Inc()
		return fmt.Errorf("rename cache: %w", err)
	}

	metrics.CacheFlushes.WithLabelValues("ok").Inc()
	logging.Debug().Int("entries", len(snapshot)).Str("path", c.path).Msg("Poster cache flushed")
	return nil
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

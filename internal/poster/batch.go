// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package poster

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/showreel/internal/config"
	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/metrics"
)

// Batcher orchestrates concurrent poster fetches under a worker cap and
// inter-dispatch pacing.
//
// The pacing limiter is politeness toward the remote API, not a
// correctness mechanism; correctness (bounded retries, caching) lives
// in Client. A FetchAll call blocks until every dispatched fetch has
// completed or the batch deadline expires; no worker outlives the call.
type Batcher struct {
	client  *Client
	workers int
	limiter *rate.Limiter
	timeout time.Duration
}

// NewBatcher creates a batch fetcher over the given client.
func NewBatcher(cfg *config.FetchConfig, client *Client) *Batcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Stagger > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Stagger), 1)
	}
	return &Batcher{
		client:  client,
		workers: cfg.Workers,
		limiter: limiter,
		timeout: cfg.BatchTimeout,
	}
}

// FetchAll resolves every key in ids and returns a result per unique
// key. Keys resolve independently: one permanent failure never blocks
// or aborts sibling fetches. Keys still unresolved when the batch
// deadline expires are reported as failed rather than omitted, so
// callers always receive a complete result set.
func (b *Batcher) FetchAll(ctx context.Context, ids []int) map[int]FetchResult {
	start := time.Now()
	metrics.BatchSize.Observe(float64(len(ids)))

	results := make(map[int]FetchResult, len(ids))
	if len(ids) == 0 {
		return results
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	// Deduplicate while preserving first-occurrence order so pacing and
	// the exactly-once output guarantee both hold.
	unique := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, b.workers)
	)

	for _, id := range unique {
		// Stagger successive dispatches to avoid bursting the API.
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(movieID int) {
			defer wg.Done()
			defer func() { <-sem }()

			res := b.client.Fetch(ctx, movieID)
			mu.Lock()
			results[movieID] = res
			mu.Unlock()
		}(id)
	}

	wg.Wait()

	// Every input key must appear exactly once; anything the deadline
	// cut off before dispatch is reported as a failure, not dropped.
	for _, id := range unique {
		if _, ok := results[id]; !ok {
			results[id] = FetchResult{ItemID: id, URL: nil, Outcome: OutcomeFailedPermanent}
		}
	}

	elapsed := time.Since(start)
	metrics.BatchDuration.Observe(elapsed.Seconds())
	logging.Debug().Int("keys", len(unique)).Dur("elapsed", elapsed).Msg("Batch poster fetch complete")
	return results
}

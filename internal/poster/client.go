// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

/*
client.go - TMDB Poster Lookup Client

Single-key poster resolution against the TMDB movie details endpoint:

	GET <base>/<movie_id>?api_key=<key>&language=en-US

Retry policy per attempt class:
  - HTTP 429: honor Retry-After if present, else exponential backoff
    min(2^attempt, cap) seconds
  - Network errors and other non-2xx: exponential backoff starting at
    the configured network retry delay, capped at the same backoff cap,
    retried up to the limit then given up

Exhausted retries cache the key as resolved-absent so a failing key is
not retried on every recommendation. This trades a possibly-recoverable
transient error for bounded retry cost; the only un-stick mechanisms are
a manual per-key cache delete and the configurable absent-entry TTL.
*/
package poster

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/showreel/internal/config"
	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/metrics"
)

// posterSize is the TMDB image size segment used when composing URLs.
const posterSize = "w500"

// lookupResponse is the subset of the TMDB movie details body we use.
type lookupResponse struct {
	PosterPath string `json:"poster_path"`
}

// Client resolves poster URLs for movie IDs, consulting and updating the
// durable cache. Safe for concurrent use.
type Client struct {
	baseURL      string
	imageBaseURL string
	apiKey       string
	language     string

	httpClient *http.Client
	cache      *Cache
	breaker    *breaker

	maxRetries        int
	backoffCap        time.Duration
	networkRetryDelay time.Duration
}

// NewClient creates a poster client from config, backed by the given cache.
func NewClient(cfg *config.TMDBConfig, cache *Cache) *Client {
	c := &Client{
		baseURL:           strings.TrimSuffix(cfg.BaseURL, "/"),
		imageBaseURL:      strings.TrimSuffix(cfg.ImageBaseURL, "/"),
		apiKey:            cfg.APIKey,
		language:          cfg.Language,
		httpClient:        &http.Client{Timeout: cfg.Timeout},
		cache:             cache,
		maxRetries:        cfg.MaxRetries,
		backoffCap:        cfg.BackoffCap,
		networkRetryDelay: cfg.NetworkRetryDelay,
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker("tmdb-api")
	}
	return c
}

// Fetch resolves one movie ID to a poster URL.
//
// A cached resolution (present or absent) returns immediately as
// OutcomeHit with zero remote calls. Otherwise the remote API is queried
// with bounded retries; the resolution is cached before returning.
func (c *Client) Fetch(ctx context.Context, movieID int) FetchResult {
	key := strconv.Itoa(movieID)
	start := time.Now()

	if url, found := c.cache.Get(key); found {
		metrics.FetchOutcomes.WithLabelValues("hit").Inc()
		return FetchResult{ItemID: movieID, URL: url, Outcome: OutcomeHit}
	}

	result := c.fetchRemote(ctx, movieID, key)
	metrics.FetchOutcomes.WithLabelValues(result.Outcome.String()).Inc()
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	return result
}

// fetchRemote runs the bounded retry loop for a cache miss.
func (c *Client) fetchRemote(ctx context.Context, movieID int, key string) FetchResult {
	// Exponential policy for network-level and plain-HTTP failures;
	// 429s have their own schedule below.
	netWait := backoff.NewExponentialBackOff()
	netWait.InitialInterval = c.networkRetryDelay
	netWait.MaxInterval = c.backoffCap
	netWait.MaxElapsedTime = 0
	netWait.Reset()

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.doLookup(ctx, movieID)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues("network_error").Inc()
			logging.Warn().Err(err).Int("movie_id", movieID).Int("attempt", attempt+1).Msg("Poster lookup failed")
			if ctx.Err() != nil {
				// Abandoned at the deadline: report failure but do not
				// poison the cache with an entry we never resolved.
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
			}
			if attempt+1 < c.maxRetries && !c.wait(ctx, netWait.NextBackOff()) {
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			delay := c.rateLimitDelay(resp, attempt)
			_ = resp.Body.Close()
			metrics.FetchAttempts.WithLabelValues("rate_limited").Inc()
			logging.Warn().Int("movie_id", movieID).Int("attempt", attempt+1).Dur("retry_delay", delay).Msg("Poster API rate limited (HTTP 429)")
			if attempt+1 < c.maxRetries && !c.wait(ctx, delay) {
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
			}

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var body lookupResponse
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			_ = resp.Body.Close()
			if decodeErr != nil {
				// Malformed response is not retryable; downgrade like an
				// exhausted failure.
				metrics.FetchAttempts.WithLabelValues("http_error").Inc()
				logging.Warn().Err(decodeErr).Int("movie_id", movieID).Msg("Poster lookup returned malformed body")
				c.cache.Put(key, nil)
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
			}

			metrics.FetchAttempts.WithLabelValues("ok").Inc()
			if body.PosterPath == "" {
				logging.Debug().Int("movie_id", movieID).Msg("No poster exists for movie")
				c.cache.Put(key, nil)
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFetched}
			}

			url := fmt.Sprintf("%s/%s%s", c.imageBaseURL, posterSize, body.PosterPath)
			c.cache.Put(key, &url)
			logging.Debug().Int("movie_id", movieID).Str("url", url).Msg("Poster resolved")
			return FetchResult{ItemID: movieID, URL: &url, Outcome: OutcomeFetched}

		default:
			status := resp.StatusCode
			_ = resp.Body.Close()
			metrics.FetchAttempts.WithLabelValues("http_error").Inc()
			logging.Warn().Int("movie_id", movieID).Int("status", status).Int("attempt", attempt+1).Msg("Poster lookup returned error status")
			if attempt+1 < c.maxRetries && !c.wait(ctx, netWait.NextBackOff()) {
				return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
			}
		}
	}

	// All attempts exhausted: cache the failure so this key does not
	// storm a rate-limited API on every call.
	logging.Warn().Int("movie_id", movieID).Int("attempts", c.maxRetries).Msg("Poster lookup exhausted retries")
	c.cache.Put(key, nil)
	return FetchResult{ItemID: movieID, URL: nil, Outcome: OutcomeFailedPermanent}
}

// doLookup performs one HTTP attempt, through the circuit breaker when
// one is configured.
func (c *Client) doLookup(ctx context.Context, movieID int) (*http.Response, error) {
	if c.breaker != nil {
		return c.breaker.execute(func() (*http.Response, error) {
			return c.doRequest(ctx, movieID)
		})
	}
	return c.doRequest(ctx, movieID)
}

// doRequest builds and executes the movie details request.
func (c *Client) doRequest(ctx context.Context, movieID int) (*http.Response, error) {
	url := fmt.Sprintf("%s/%d?api_key=%s&language=%s", c.baseURL, movieID, c.apiKey, c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Browser-like headers; TMDB serves some networks more reliably
	// with them than with a bare Go user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.themoviedb.org/")
	req.Header.Set("Origin", "https://www.themoviedb.org")

	return c.httpClient.Do(req)
}

// rateLimitDelay computes the wait after a 429: the server-supplied
// Retry-After when present, else min(2^attempt, cap) seconds.
func (c *Client) rateLimitDelay(resp *http.Response, attempt int) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	delay := time.Duration(1<<attempt) * time.Second
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

// wait blocks for the given delay or until ctx is done. Returns false
// when the context expired first.
func (c *Client) wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	metrics.FetchRetryWait.Observe(delay.Seconds())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

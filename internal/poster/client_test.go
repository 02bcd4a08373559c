// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package poster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/showreel/internal/config"
)

func testClient(t *testing.T, serverURL string) (*Client, *Cache) {
	t.Helper()
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"), 100, 0)
	cfg := &config.TMDBConfig{
		BaseURL:           serverURL,
		ImageBaseURL:      "https://image.tmdb.org/t/p",
		APIKey:            "test-key",
		Language:          "en-US",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		BackoffCap:        10 * time.Second,
		NetworkRetryDelay: 10 * time.Millisecond,
	}
	return NewClient(cfg, cache), cache
}

func TestFetchResolvesPosterURL(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api_key query parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"poster_path":"/x.jpg","title":"Fight Club"}`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)

	result := client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeFetched {
		t.Fatalf("expected OutcomeFetched, got %s", result.Outcome)
	}
	if result.URL == nil || *result.URL != "https://image.tmdb.org/t/p/w500/x.jpg" {
		t.Errorf("unexpected url: %v", result.URL)
	}

	// Second fetch serves from cache with no remote call.
	result = client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeHit {
		t.Errorf("expected OutcomeHit on second fetch, got %s", result.Outcome)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected exactly 1 remote request, got %d", got)
	}
}

func TestFetchHonorsRetryAfter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping retry wait test in short mode")
	}

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"poster_path":"/x.jpg"}`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)

	start := time.Now()
	result := client.Fetch(context.Background(), 550)
	elapsed := time.Since(start)

	if result.Outcome != OutcomeFetched {
		t.Fatalf("expected OutcomeFetched after rate limit retry, got %s", result.Outcome)
	}
	if elapsed < 2*time.Second {
		t.Errorf("expected >= 2s wait honoring Retry-After, waited %v", elapsed)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
}

func TestFetchExhaustedRetriesCachesFailure(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, cache := testClient(t, srv.URL)

	result := client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeFailedPermanent {
		t.Fatalf("expected OutcomeFailedPermanent, got %s", result.Outcome)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}

	// Failure is cached as resolved-absent: no further remote calls.
	url, found := cache.Get("550")
	if !found || url != nil {
		t.Error("expected failure cached as resolved-absent")
	}
	result = client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeHit || result.URL != nil {
		t.Errorf("expected cached absent hit, got %s url=%v", result.Outcome, result.URL)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected no additional requests, got %d total", got)
	}
}

func TestFetchNetworkErrorRetriesWithBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from the first attempt

	client, cache := testClient(t, srv.URL)

	start := time.Now()
	result := client.Fetch(context.Background(), 550)
	elapsed := time.Since(start)

	if result.Outcome != OutcomeFailedPermanent {
		t.Fatalf("expected OutcomeFailedPermanent on unreachable host, got %s", result.Outcome)
	}
	// Two inter-attempt waits on an exponential schedule starting at the
	// 10ms initial delay; with jitter the floor is half that per wait.
	if elapsed < 10*time.Millisecond {
		t.Errorf("expected backoff waits between attempts, took only %v", elapsed)
	}
	if url, found := cache.Get("550"); !found || url != nil {
		t.Error("expected exhausted network failure cached as resolved-absent")
	}
}

func TestFetchNoPosterPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"poster_path":""}`))
	}))
	defer srv.Close()

	client, cache := testClient(t, srv.URL)

	result := client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeFetched {
		t.Fatalf("expected OutcomeFetched for movie without poster, got %s", result.Outcome)
	}
	if result.URL != nil {
		t.Errorf("expected nil url, got %v", *result.URL)
	}
	if url, found := cache.Get("550"); !found || url != nil {
		t.Error("expected the no-poster resolution cached as resolved-absent")
	}
}

func TestFetchMalformedBodyNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)

	result := client.Fetch(context.Background(), 550)
	if result.Outcome != OutcomeFailedPermanent {
		t.Fatalf("expected OutcomeFailedPermanent for malformed body, got %s", result.Outcome)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("malformed body should not be retried, got %d requests", got)
	}
}

func TestFetchCancelledContextDoesNotCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, cache := testClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := client.Fetch(ctx, 550)
	if result.Outcome != OutcomeFailedPermanent {
		t.Fatalf("expected OutcomeFailedPermanent on cancellation, got %s", result.Outcome)
	}
	if _, found := cache.Get("550"); found {
		t.Error("abandoned fetch must not cache a resolution")
	}
}

// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package poster

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/showreel/internal/config"
)

func testBatcher(t *testing.T, serverURL string, workers int, stagger time.Duration) (*Batcher, *Cache) {
	t.Helper()
	client, cache := testClient(t, serverURL)
	cfg := &config.FetchConfig{
		Workers:      workers,
		Stagger:      stagger,
		BatchTimeout: 10 * time.Second,
	}
	return NewBatcher(cfg, client), cache
}

// movieIDFromPath extracts the trailing ID segment of a details request.
func movieIDFromPath(path string) int {
	id, _ := strconv.Atoi(path[strings.LastIndex(path, "/")+1:])
	return id
}

func TestFetchAllEveryKeyExactlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := movieIDFromPath(r.URL.Path)
		fmt.Fprintf(w, `{"poster_path":"/p%d.jpg"}`, id)
	}))
	defer srv.Close()

	b, _ := testBatcher(t, srv.URL, 5, 0)

	ids := []int{1, 2, 3, 4, 2, 1} // duplicates collapse
	results := b.FetchAll(context.Background(), ids)

	if len(results) != 4 {
		t.Fatalf("expected 4 unique results, got %d", len(results))
	}
	for _, id := range []int{1, 2, 3, 4} {
		res, ok := results[id]
		if !ok {
			t.Errorf("missing result for id %d", id)
			continue
		}
		want := fmt.Sprintf("https://image.tmdb.org/t/p/w500/p%d.jpg", id)
		if res.URL == nil || *res.URL != want {
			t.Errorf("id %d: unexpected url %v", id, res.URL)
		}
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	b, _ := testBatcher(t, "http://invalid.localhost", 5, 0)
	results := b.FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d entries", len(results))
	}
}

func TestFetchAllFailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if movieIDFromPath(r.URL.Path) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"poster_path":"/ok.jpg"}`))
	}))
	defer srv.Close()

	b, _ := testBatcher(t, srv.URL, 5, 0)
	results := b.FetchAll(context.Background(), []int{1, 2, 3})

	if results[2].Outcome != OutcomeFailedPermanent {
		t.Errorf("expected id 2 to fail, got %s", results[2].Outcome)
	}
	for _, id := range []int{1, 3} {
		if results[id].Outcome != OutcomeFetched || results[id].URL == nil {
			t.Errorf("id %d should succeed despite sibling failure, got %s", id, results[id].Outcome)
		}
	}
}

func TestFetchAllMixedHitsAndFetches(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"poster_path":"/x.jpg"}`))
	}))
	defer srv.Close()

	b, cache := testBatcher(t, srv.URL, 5, 0)
	url := "https://image.tmdb.org/t/p/w500/cached.jpg"
	cache.Put("1", &url)

	results := b.FetchAll(context.Background(), []int{1, 2})

	if results[1].Outcome != OutcomeHit {
		t.Errorf("expected cached id 1 to be a hit, got %s", results[1].Outcome)
	}
	if results[2].Outcome != OutcomeFetched {
		t.Errorf("expected id 2 to be fetched, got %s", results[2].Outcome)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected exactly 1 remote request, got %d", got)
	}
}

func TestFetchAllRespectsWorkerCap(t *testing.T) {
	var inflight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
		_, _ = w.Write([]byte(`{"poster_path":"/x.jpg"}`))
	}))
	defer srv.Close()

	b, _ := testBatcher(t, srv.URL, 2, 0)
	b.FetchAll(context.Background(), []int{1, 2, 3, 4, 5, 6})

	if got := peak.Load(); got > 2 {
		t.Errorf("worker cap exceeded: %d concurrent requests", got)
	}
}

func TestFetchAllDeadlineReportsUnresolvedAsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		_, _ = w.Write([]byte(`{"poster_path":"/x.jpg"}`))
	}))
	defer srv.Close()

	client, _ := testClient(t, srv.URL)
	b := NewBatcher(&config.FetchConfig{
		Workers:      1,
		Stagger:      0,
		BatchTimeout: 100 * time.Millisecond,
	}, client)

	results := b.FetchAll(context.Background(), []int{1, 2, 3})

	if len(results) != 3 {
		t.Fatalf("deadline must not drop keys: got %d of 3", len(results))
	}
	for id, res := range results {
		if res.Outcome != OutcomeFailedPermanent {
			t.Errorf("id %d: expected failed outcome after deadline, got %s", id, res.Outcome)
		}
	}
}

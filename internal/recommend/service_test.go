// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package recommend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/showreel/internal/catalog"
	"github.com/tomtom215/showreel/internal/config"
	"github.com/tomtom215/showreel/internal/poster"
)

func testService(t *testing.T, serverURL string) *Service {
	t.Helper()

	index, err := catalog.New(
		[]catalog.Item{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}, {ID: 3, Title: "C"}, {ID: 4, Title: "D"}},
		[][]float64{
			{1.0, 0.9, 0.5, 0.8},
			{0.9, 1.0, 0.4, 0.7},
			{0.5, 0.4, 1.0, 0.6},
			{0.8, 0.7, 0.6, 1.0},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	cache := poster.NewCache(filepath.Join(t.TempDir(), "cache.json"), 100, 0)
	client := poster.NewClient(&config.TMDBConfig{
		BaseURL:           serverURL,
		ImageBaseURL:      "https://image.tmdb.org/t/p",
		APIKey:            "test-key",
		Language:          "en-US",
		Timeout:           5 * time.Second,
		MaxRetries:        3,
		BackoffCap:        10 * time.Second,
		NetworkRetryDelay: 10 * time.Millisecond,
	}, cache)
	batcher := poster.NewBatcher(&config.FetchConfig{Workers: 5, BatchTimeout: 10 * time.Second}, client)

	return NewService(index, batcher, 2)
}

func posterServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		fmt.Fprintf(w, `{"poster_path":"/p%d.jpg"}`, id)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecommendOrderedByScore(t *testing.T) {
	srv := posterServer(t)
	svc := testService(t, srv.URL)

	resp, err := svc.Recommend(context.Background(), "A", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Found {
		t.Fatal("expected Found for known title")
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(resp.Recommendations))
	}

	// Similarity rank order survives the unordered poster fetch.
	if resp.Recommendations[0].Title != "B" || resp.Recommendations[1].Title != "D" {
		t.Errorf("unexpected order: %s, %s", resp.Recommendations[0].Title, resp.Recommendations[1].Title)
	}
	if resp.Recommendations[0].Score < resp.Recommendations[1].Score {
		t.Error("scores not descending")
	}

	for _, rec := range resp.Recommendations {
		want := fmt.Sprintf("https://image.tmdb.org/t/p/w500/p%d.jpg", rec.ID)
		if rec.PosterURL == nil || *rec.PosterURL != want {
			t.Errorf("%s: unexpected poster url %v", rec.Title, rec.PosterURL)
		}
	}
}

func TestRecommendUnknownTitle(t *testing.T) {
	srv := posterServer(t)
	svc := testService(t, srv.URL)

	resp, err := svc.Recommend(context.Background(), "Nope", 2)
	if err != nil {
		t.Fatalf("unknown title should not be an error: %v", err)
	}
	if resp.Found {
		t.Error("expected Found=false")
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("expected empty recommendations, got %d", len(resp.Recommendations))
	}
}

func TestRecommendDefaultK(t *testing.T) {
	srv := posterServer(t)
	svc := testService(t, srv.URL)

	resp, err := svc.Recommend(context.Background(), "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != svc.DefaultK() {
		t.Errorf("expected default k=%d results, got %d", svc.DefaultK(), len(resp.Recommendations))
	}
}

func TestRecommendInvalidK(t *testing.T) {
	srv := posterServer(t)
	svc := testService(t, srv.URL)

	if _, err := svc.Recommend(context.Background(), "A", 10); err == nil {
		t.Error("expected error for k exceeding catalog capacity")
	}
}

func TestRecommendPosterFailureDoesNotFailResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := testService(t, srv.URL)

	resp, err := svc.Recommend(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("poster failures must not fail the recommendation: %v", err)
	}
	for _, rec := range resp.Recommendations {
		if rec.PosterURL != nil {
			t.Errorf("%s: expected nil poster url", rec.Title)
		}
		if rec.Poster != "failed_permanent" {
			t.Errorf("%s: expected failed_permanent outcome, got %s", rec.Title, rec.Poster)
		}
	}
}

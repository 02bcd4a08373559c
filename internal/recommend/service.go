// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/showreel/internal/catalog"
	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/metrics"
	"github.com/tomtom215/showreel/internal/poster"
)

// Recommendation is one recommended movie with its resolved poster.
// PosterURL is null when no poster exists or resolution failed; the
// Poster field says which.
type Recommendation struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	PosterURL *string `json:"poster_url"`
	Poster    string  `json:"poster"` // "hit", "fetched" or "failed_permanent"
}

// Response is the result of one recommendation request. Found is false
// when the seed title is not in the catalog; Recommendations is then
// empty rather than the whole response being an error.
type Response struct {
	Title           string           `json:"title"`
	Found           bool             `json:"found"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Service combines similarity lookup with poster resolution.
type Service struct {
	index    *catalog.Index
	batcher  *poster.Batcher
	defaultK int
}

// NewService creates a recommendation service. k is the number of
// recommendations returned when the caller does not ask for a count.
func NewService(index *catalog.Index, batcher *poster.Batcher, defaultK int) *Service {
	return &Service{
		index:    index,
		batcher:  batcher,
		defaultK: defaultK,
	}
}

// DefaultK returns the configured default recommendation count.
func (s *Service) DefaultK() int { return s.defaultK }

// Titles returns every catalog title in catalog order.
func (s *Service) Titles() []string { return s.index.Titles() }

// Recommend returns the k movies most similar to title, each with its
// poster resolved through the cache-backed fetch pipeline. k <= 0 means
// the configured default. An unknown title yields Found=false with an
// empty list; other lookup failures (bad k) are returned as errors.
func (s *Service) Recommend(ctx context.Context, title string, k int) (*Response, error) {
	start := time.Now()
	if k <= 0 {
		k = s.defaultK
	}

	ranked, err := s.index.TopK(title, k)
	if err != nil {
		if errors.Is(err, catalog.ErrTitleNotFound) {
			metrics.Recommendations.WithLabelValues("unknown_title").Inc()
			logging.Debug().Str("title", title).Msg("Recommendation for unknown title")
			return &Response{Title: title, Found: false, Recommendations: []Recommendation{}}, nil
		}
		metrics.Recommendations.WithLabelValues("error").Inc()
		return nil, err
	}

	ids := make([]int, len(ranked))
	for i, item := range ranked {
		ids[i] = item.Item.ID
	}
	posters := s.batcher.FetchAll(ctx, ids)

	// Re-project onto similarity rank order; the fetch map carries no
	// ordering of its own.
	recs := make([]Recommendation, len(ranked))
	for i, item := range ranked {
		res := posters[item.Item.ID]
		recs[i] = Recommendation{
			ID:        item.Item.ID,
			Title:     item.Item.Title,
			Score:     item.Score,
			PosterURL: res.URL,
			Poster:    res.Outcome.String(),
		}
	}

	metrics.Recommendations.WithLabelValues("ok").Inc()
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	logging.Debug().Str("title", title).Int("k", k).Dur("elapsed", time.Since(start)).Msg("Recommendation served")
	return &Response{Title: title, Found: true, Recommendations: recs}, nil
}

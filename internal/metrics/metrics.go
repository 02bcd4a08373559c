// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package metrics provides Prometheus instrumentation for Showreel.
//
// Metrics cover the poster fetch pipeline (attempts, outcomes, retry
// waits, circuit breaker state), the durable poster cache (hits, misses,
// flushes), batch fetch behavior, and the HTTP API surface. All metrics
// are registered via promauto and exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poster fetch metrics

	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poster_fetch_attempts_total",
			Help: "Total number of remote poster lookup attempts",
		},
		[]string{"status"}, // "ok", "rate_limited", "http_error", "network_error"
	)

	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poster_fetch_outcomes_total",
			Help: "Total number of poster fetch results by outcome",
		},
		[]string{"outcome"}, // "hit", "fetched", "failed_permanent"
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poster_fetch_duration_seconds",
			Help:    "End-to-end duration of a single poster fetch including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	FetchRetryWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poster_fetch_retry_wait_seconds",
			Help:    "Time spent waiting between poster fetch retry attempts",
			Buckets: []float64{0.5, 1, 2, 4, 8, 10, 16},
		},
	)

	// Poster cache metrics

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poster_cache_hits_total",
			Help: "Total number of poster cache hits (resolved present or absent)",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poster_cache_misses_total",
			Help: "Total number of poster cache misses",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poster_cache_entries",
			Help: "Current number of entries in the poster cache",
		},
	)

	CacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poster_cache_flushes_total",
			Help: "Total number of poster cache flush attempts",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Batch fetch metrics

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poster_batch_size",
			Help:    "Number of keys per batch fetch call",
			Buckets: []float64{1, 2, 4, 5, 8, 10, 20, 50},
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poster_batch_duration_seconds",
			Help:    "Duration of batch fetch calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Recommendation metrics

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"result"}, // "ok", "unknown_title", "invalid_k"
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of full recommendation calls including poster fetches",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records a completed API request with its status code
// and duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package poster resolves movie IDs to poster image URLs via the TMDB
// API, with a durable cache, bounded retries, rate-limit awareness, and
// concurrency-capped batch orchestration.
//
// # Components
//
//   - Cache: durable three-state key store (unknown / resolved-present /
//     resolved-absent) backed by a flat JSON file
//   - Client: single-key fetch with cache-first lookup, 429 backoff,
//     and an optional circuit breaker
//   - Batcher: concurrent FetchAll with a worker cap, dispatch pacing,
//     and a complete-result-set guarantee under deadlines
//
// # Failure policy
//
// A key whose retries are exhausted is cached as resolved-absent so it
// cannot storm a rate-limited API. The remedies are the per-key Delete
// (exposed over the API) and the configurable absent-entry TTL.
package poster

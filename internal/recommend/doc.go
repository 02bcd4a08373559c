// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package recommend composes the similarity index and the poster fetch
// pipeline into the recommendation operation the API serves. It owns
// result shaping only; ranking lives in catalog and poster resolution
// in poster.
package recommend

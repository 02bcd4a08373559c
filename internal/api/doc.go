// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package api provides the HTTP surface: titles listing, recommendation
// lookups, poster cache administration, health probes and Prometheus
// metrics, routed with Chi.
package api

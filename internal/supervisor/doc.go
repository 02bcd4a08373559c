// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

// Package supervisor builds the suture supervision tree that keeps the
// HTTP server and background maintenance running, with failure
// isolation between the two layers.
package supervisor

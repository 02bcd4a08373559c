// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/showreel/internal/catalog"
	"github.com/tomtom215/showreel/internal/logging"
	"github.com/tomtom215/showreel/internal/models"
	"github.com/tomtom215/showreel/internal/poster"
	"github.com/tomtom215/showreel/internal/recommend"
	"github.com/tomtom215/showreel/internal/validation"
)

// recommendationsRequest carries the validated query parameters of the
// recommendations endpoint.
type recommendationsRequest struct {
	Title string `validate:"required"`
	K     int    `validate:"gte=0,lte=100"`
}

// Handler implements all HTTP endpoints.
type Handler struct {
	service *recommend.Service
	cache   *poster.Cache
	started time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(service *recommend.Service, cache *poster.Cache) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		started: time.Now(),
	}
}

// Titles returns every catalog title, for selection UIs.
func (h *Handler) Titles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	titles := h.service.Titles()

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"titles": titles,
			"total":  len(titles),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Recommendations serves GET /api/v1/recommendations?title=<t>&k=<n>.
// An unknown title is a 404 with an empty-result payload rather than a
// bare error, so clients can distinguish "no such movie" from failures.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	title := r.URL.Query().Get("title")
	k, err := getIntParam(r, "k", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	req := recommendationsRequest{Title: title, K: k}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	resp, err := h.service.Recommend(r.Context(), title, k)
	if err != nil {
		// Only bad input maps to the caller; anything else is ours.
		if errors.Is(err, catalog.ErrInvalidK) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "recommendation failed", err)
		return
	}

	status := http.StatusOK
	if !resp.Found {
		status = http.StatusNotFound
		logging.Debug().Str("title", sanitizeLogValue(title)).Msg("Recommendations requested for unknown title")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// ClearPosterCache serves DELETE /api/v1/posters/cache.
func (h *Handler) ClearPosterCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to clear poster cache", err)
		return
	}

	logging.Info().Msg("Poster cache cleared via API")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]interface{}{"cleared": true},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// DeletePosterCacheEntry serves DELETE /api/v1/posters/cache/{id}. It
// un-sticks a single key that was cached as permanently failed.
func (h *Handler) DeletePosterCacheEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := strconv.Atoi(id); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a numeric movie ID", nil)
		return
	}

	h.cache.Delete(id)
	logging.Info().Str("movie_id", id).Msg("Poster cache entry deleted via API")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]interface{}{"deleted": id},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status": "alive",
			"uptime": time.Since(h.started).String(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady reports readiness to serve recommendations.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	titles := h.service.Titles()
	if len(titles) == 0 {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "catalog is empty", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":       "ready",
			"catalog_size": len(titles),
			"cached_keys":  h.cache.Len(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// Preview returns today's punches classified and resolved without persisting
//
// @Summary Preview today's sync
// @Description Fetches today's punches from the source, classifies direction, and resolves worker mappings. Nothing is written to the database; events that fail resolution are carried through unmapped for inspection.
// @Tags Sync
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.ResolvedEvent} "Preview assembled"
// @Failure 502 {object} models.APIResponse "Source unreachable or rejected the request"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /sync/preview [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	events, err := h.sync.Preview(r.Context())
	if err != nil {
		h.respondPreviewError(w, err)
		return
	}

	if events == nil {
		events = []models.ResolvedEvent{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   events,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// SyncRuns returns recent run history
//
// @Summary List recent sync runs
// @Description Returns run history newest first, each entry carrying the fetch window, trigger kind, terminal status, and per-stage counts. The limit parameter caps the page; it defaults to 100 and is clamped to 1000.
// @Tags Sync
// @Accept json
// @Produce json
// @Param limit query int false "Maximum runs to return (default 100, max 1000)"
// @Success 200 {object} models.APIResponse{data=[]models.SyncRun} "Run history"
// @Failure 400 {object} models.APIResponse "Invalid limit parameter"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /sync/runs [get]
func (h *Handler) SyncRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	runs, err := h.sync.RunHistory(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RUN_HISTORY_FAILED", "Failed to load run history", err)
		return
	}

	if runs == nil {
		runs = []*models.SyncRun{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   runs,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondPreviewError maps preview failures to API errors
func (h *Handler) respondPreviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, source.ErrSourceAuth):
		respondError(w, http.StatusBadGateway, "SOURCE_AUTH_FAILED", "Source rejected the stored credentials", err)
	case errors.Is(err, source.ErrSourceUnreachable), errors.Is(err, source.ErrSourceMalformed):
		respondError(w, http.StatusBadGateway, "SOURCE_ERROR", "Source unreachable or returned an invalid response", err)
	default:
		respondError(w, http.StatusInternalServerError, "PREVIEW_FAILED", "Failed to assemble preview", err)
	}
}

// TriggerSync runs a sync synchronously and returns the run report
//
// @Summary Trigger a sync run
// @Description Runs a full fetch, classify, resolve, persist cycle synchronously and returns the run report. The report carries per-stage counts and any per-event failures; a run that failed upstream still returns its report. Returns 409 when a run is already in flight.
// @Tags Sync
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.SyncRun} "Run completed, see report for outcome"
// @Failure 409 {object} models.APIResponse "A sync run is already in flight"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /sync/trigger [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	run, err := h.sync.RunNow(r.Context())
	if err != nil {
		if errors.Is(err, syncpkg.ErrRunInFlight) {
			respondError(w, http.StatusConflict, "SYNC_IN_FLIGHT", "A sync run is already in flight", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "SYNC_FAILED", "Failed to execute sync run", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   run,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/models"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// Maintenance endpoints rewrite stored attendance rows and are the only
// non-idempotent-by-transport operations in the API: reclassify converges
// after one pass, purge-duplicates removes rows for good. Both share the
// run mutex with the sync pipeline and return 409 while a run is in flight.

// Reclassify recomputes the direction of every stored attendance event
//
// @Summary Reclassify all attendance records
// @Description Recomputes in/out direction for every stored attendance event using positional classification per worker and day, rewriting only rows whose direction changed. Running it again immediately changes zero rows.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.ReclassifyResult} "Sweep completed"
// @Failure 409 {object} models.APIResponse "A sync run is already in flight"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /maintenance/reclassify [post]
func (h *Handler) Reclassify(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	changed, err := h.sync.ReclassifyAll(r.Context())
	if err != nil {
		h.respondMaintenanceError(w, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogMaintenance(r.Context(), requestActor(r), audit.SourceFromRequest(r), audit.EventTypeReclassify, "reclassify", int(changed))
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   models.ReclassifyResult{Changed: changed},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// PurgeDuplicates removes redundant attendance rows sharing a dedup key
//
// @Summary Purge duplicate attendance records
// @Description Removes redundant rows sharing a dedup key, keeping the earliest row of each group. The scope of the key follows the configured dedupe_device_scope setting.
// @Tags Maintenance
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.PurgeResult} "Purge completed"
// @Failure 409 {object} models.APIResponse "A sync run is already in flight"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /maintenance/purge-duplicates [post]
func (h *Handler) PurgeDuplicates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	deleted, err := h.sync.PurgeDuplicates(r.Context())
	if err != nil {
		h.respondMaintenanceError(w, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogMaintenance(r.Context(), requestActor(r), audit.SourceFromRequest(r), audit.EventTypePurgeDuplicates, "purge_duplicates", int(deleted))
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   models.PurgeResult{Deleted: deleted},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondMaintenanceError maps maintenance failures to API errors
func (h *Handler) respondMaintenanceError(w http.ResponseWriter, err error) {
	if errors.Is(err, syncpkg.ErrRunInFlight) {
		respondError(w, http.StatusConflict, "SYNC_IN_FLIGHT", "A sync run is already in flight", nil)
		return
	}
	respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Maintenance operation failed", err)
}

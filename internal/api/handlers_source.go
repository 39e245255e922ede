// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// ProbeSource checks raw connectivity to the configured attendance source
//
// @Summary Probe source connectivity
// @Description Dials the configured source address once over TCP and reports reachability with connect latency. No authentication is attempted. An unreachable source is a successful probe with reachable=false.
// @Tags Source
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.ProbeResult} "Probe completed"
// @Failure 500 {object} models.APIResponse "Probe could not run"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /source/probe [post]
func (h *Handler) ProbeSource(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) || !h.requireSync(w) {
		return
	}

	start := time.Now()

	result, err := h.sync.ProbeSource(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SOURCE_ERROR", "Probe could not run", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   result,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// RegisterSourceToken exchanges device credentials for a source API token
//
// @Summary Register source token
// @Description Exchanges device account credentials for a fresh source API token, installs it on the live client, and stores it sealed with the configured encryption key. The plaintext credentials are never persisted.
// @Tags Source
// @Accept json
// @Produce json
// @Param credentials body models.SourceTokenRequest true "Device account credentials"
// @Success 200 {object} models.APIResponse "Token registered"
// @Failure 400 {object} models.APIResponse "Invalid request body, unsupported source mode, or rejected credentials"
// @Failure 502 {object} models.APIResponse "Source unreachable or returned an invalid response"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Router /source/token [post]
func (h *Handler) RegisterSourceToken(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) || !h.requireSync(w) {
		return
	}

	req, err := h.parseAndValidateTokenRequest(w, r)
	if err != nil {
		return
	}

	if err := h.sync.RegisterSourceToken(r.Context(), req.Username, req.Password); err != nil {
		h.respondTokenError(w, err)
		return
	}

	h.recordTokenRegistered(r, req.Username)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"message": "Source token registered"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// ClearSourceToken removes the stored source API token
//
// @Summary Clear stored source token
// @Description Deletes the sealed source API token from the credentials store. The live client keeps its current token until restart, after which the config token (if any) applies and the re-authentication path covers recovery.
// @Tags Source
// @Accept json
// @Produce json
// @Success 200 {object} models.APIResponse "Token cleared"
// @Failure 500 {object} models.APIResponse "Internal server error"
// @Failure 503 {object} models.APIResponse "Sync manager not available"
// @Router /source/token [delete]
func (h *Handler) ClearSourceToken(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) || !h.requireSync(w) {
		return
	}

	if err := h.sync.ClearSourceToken(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "TOKEN_CLEAR_FAILED", "Failed to clear source token", err)
		return
	}

	h.recordTokenCleared(r)

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"message": "Source token cleared"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// parseAndValidateTokenRequest parses and validates the token registration body
func (h *Handler) parseAndValidateTokenRequest(w http.ResponseWriter, r *http.Request) (*models.SourceTokenRequest, error) {
	var req models.SourceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err)
		return nil, err
	}

	validationReq := SourceTokenRequestValidation{
		Username: req.Username,
		Password: req.Password,
	}
	if apiErr := validateRequest(&validationReq); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return nil, fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}

	return &req, nil
}

// respondTokenError maps token registration failures to API errors
func (h *Handler) respondTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, syncpkg.ErrTokenUnsupported):
		respondError(w, http.StatusBadRequest, "TOKEN_UNSUPPORTED", "Source does not support token registration", nil)
	case errors.Is(err, source.ErrSourceAuth):
		respondError(w, http.StatusBadRequest, "SOURCE_AUTH_FAILED", "Source rejected the device credentials", err)
	case errors.Is(err, source.ErrSourceUnreachable), errors.Is(err, source.ErrSourceMalformed):
		respondError(w, http.StatusBadGateway, "SOURCE_ERROR", "Source unreachable or returned an invalid response", err)
	default:
		respondError(w, http.StatusInternalServerError, "TOKEN_REGISTRATION_FAILED", "Failed to register source token", err)
	}
}

// recordTokenRegistered writes the audit trail and security log for a
// successful registration. The token value itself never reaches either log.
func (h *Handler) recordTokenRegistered(r *http.Request, sourceUser string) {
	actor := requestActor(r)

	h.secLog.LogTokenStored(actor.ID, clientIP(r))
	if h.auditor != nil {
		h.auditor.LogTokenRegistered(r.Context(), actor, audit.SourceFromRequest(r), sourceUser)
	}
}

// recordTokenCleared writes the audit trail and security log for a token
// removal.
func (h *Handler) recordTokenCleared(r *http.Request) {
	actor := requestActor(r)

	h.secLog.LogTokenCleared(actor.ID, clientIP(r))
	if h.auditor != nil {
		h.auditor.LogTokenCleared(r.Context(), actor, audit.SourceFromRequest(r))
	}
}

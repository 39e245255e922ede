// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/auth"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/validation"
)

// sanitizeLogValue escapes control characters before a string reaches a
// log line. Device names and upstream error text are attacker influenced,
// and a raw newline in either would let them forge log entries.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r != 0x7F {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "\\x%02x", r)
	}
	return b.String()
}

// respondJSON writes the standard response envelope. Every endpoint serves
// live sync state behind bearer auth, so caches are told not to store it.
// Headers go out only after a successful marshal; an encoding failure
// becomes a bare 500.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write API response")
	}
}

// respondError writes the error envelope and logs the underlying error
// when one is supplied. Code and error text pass through sanitizeLogValue
// because both can carry bytes from a remote device.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or a models.APIError if validation fails.
// The returned error uses the VALIDATION_ERROR code consistent with existing API errors.
//
// Example:
//
//	var req LoginRequestValidation
//	if apiErr := validateRequest(&req); apiErr != nil {
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	// Single field failures carry the field name as structured detail;
	// multi-field failures aggregate the messages.
	fields := validationErr.Fields()
	if len(fields) == 1 {
		return &models.APIError{
			Code:    "VALIDATION_ERROR",
			Message: fields[0].Error(),
			Details: map[string]interface{}{
				"field": fields[0].Field(),
				"tag":   fields[0].Tag(),
			},
		}
	}

	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: validationErr.Error(),
	}
}

// clientIP extracts the client address for audit and security logging.
// RealIP middleware has already rewritten RemoteAddr from proxy headers.
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// requestActor derives the audit actor from the authenticated claims,
// falling back to the system actor for unauthenticated paths.
func requestActor(r *http.Request) audit.Actor {
	if claims := auth.GetClaims(r.Context()); claims != nil {
		return audit.ActorFromUser(claims.Username, claims.Role)
	}
	return audit.SystemActor()
}

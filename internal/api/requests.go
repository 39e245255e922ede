// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package api provides HTTP request validation structs with go-playground/validator tags.
// These structs are used to validate incoming API request parameters before processing.
//
// The validation tags follow the go-playground/validator v10 syntax:
//   - required: field must be present and non-zero
//   - min,max: numeric or string length bounds
//   - omitempty: skip validation if field is empty/zero
//
// Example usage:
//
//	req := LoginRequestValidation{
//	    Username: body.Username,
//	    Password: body.Password,
//	}
//	if err := validateRequest(&req); err != nil {
//	    respondError(w, http.StatusBadRequest, err.Code, err.Message, nil)
//	    return
//	}
package api

// LoginRequestValidation represents the validated request body for the /auth/login endpoint.
// Note: This is named differently from models.LoginRequest to avoid conflicts.
//
// Fields:
//   - Username: Required operator login name
//   - Password: Required operator password
type LoginRequestValidation struct {
	Username string `validate:"required,min=1"`
	Password string `validate:"required,min=1"`
}

// SourceTokenRequestValidation represents the validated request body for POST /source/token.
// Note: This is named differently from models.SourceTokenRequest to avoid conflicts.
//
// Fields:
//   - Username: Required device account name
//   - Password: Required device account password
type SourceTokenRequestValidation struct {
	Username string `validate:"required,min=1"`
	Password string `validate:"required,min=1"`
}

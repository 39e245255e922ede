// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package models

import (
	"time"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
// It provides consistent structure for both successful and error responses, with metadata
// for observability.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Fields:
//   - Status: Response status ("success" or "error")
//   - Data: Response payload (any JSON-serializable type)
//   - Metadata: Query execution metadata (timing, timestamp)
//   - Error: Error details (populated only when Status is "error")
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"changed": 12},
//	  "metadata": {
//	    "timestamp": "2026-08-25T12:00:00Z",
//	    "query_time_ms": 45
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "VALIDATION_ERROR",
//	    "message": "username is required",
//	    "details": {"field": "username"}
//	  },
//	  "metadata": {"timestamp": "2026-08-25T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance tracking.
// All API responses include this metadata for monitoring query performance.
//
// Fields:
//   - Timestamp: Server time when response was generated (RFC3339 format)
//   - QueryTimeMS: Database query execution time in milliseconds (omitted when no query ran)
//
// Example:
//
//	{
//	  "timestamp": "2026-08-25T12:00:00Z",
//	  "query_time_ms": 23
//	}
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError represents an error response with structured error details.
// Provides consistent error format across all API endpoints for better client handling.
//
// Fields:
//   - Code: Machine-readable error code (e.g., "VALIDATION_ERROR", "SOURCE_ERROR")
//   - Message: Human-readable error message
//   - Details: Additional context (field names, constraints, etc.)
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - DATABASE_ERROR: Query execution failure
//   - AUTHENTICATION_ERROR: Invalid/missing credentials
//   - INVALID_CREDENTIALS: Login rejected
//   - SOURCE_ERROR: Attendance source unreachable or rejected the request
//   - SYNC_IN_FLIGHT: A sync run is already executing
//   - NOT_FOUND: Resource doesn't exist
//   - RATE_LIMIT_EXCEEDED: Too many requests
//
// Example:
//
//	{
//	  "code": "SYNC_IN_FLIGHT",
//	  "message": "A sync run is already in flight",
//	  "details": {"state": "fetching"}
//	}
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginRequest represents a login request for JWT authentication.
//
// Fields:
//   - Username: Operator's login name
//   - Password: Operator's password (plaintext, transmitted over HTTPS)
//
// Example:
//
//	{
//	  "username": "admin",
//	  "password": "securepassword123"
//	}
//
// Security:
//   - Password is transmitted in plaintext (HTTPS required)
//   - Password is verified against a bcrypt hash from configuration
//   - JWT tokens are HTTP-only cookies (XSS protection)
//   - Rate limited per IP on the login endpoint
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response with JWT token.
// Returns a signed JWT token for subsequent authenticated requests.
//
// Fields:
//   - Token: Signed JWT token (HS256 algorithm)
//   - ExpiresAt: Token expiration timestamp
//   - Username: Authenticated username
//   - Role: Operator's role
//
// Example:
//
//	{
//	  "token": "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...",
//	  "expires_at": "2026-08-26T12:00:00Z",
//	  "username": "admin",
//	  "role": "admin"
//	}
//
// Token usage:
//   - Set as HTTP-only cookie by server (XSS protection)
//   - OR sent as Authorization: Bearer <token> header
//   - Validated on every protected endpoint
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// SourceTokenRequest carries device credentials exchanged for a source API token.
// The resulting token is sealed with the configured encryption key before storage;
// the plaintext credentials are never persisted.
//
// Example:
//
//	{
//	  "username": "essl-admin",
//	  "password": "device-password"
//	}
type SourceTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status            string     `json:"status"`
	Mode              string     `json:"mode"` // "api" (HTTP transaction API) or "device" (direct socket)
	Version           string     `json:"version"`
	DatabaseConnected bool       `json:"database_connected"`
	SourceConfigured  bool       `json:"source_configured"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	Uptime            float64    `json:"uptime_seconds"`
}

// ReclassifyResult reports how many attendance records changed direction
// after a full reclassification sweep.
type ReclassifyResult struct {
	Changed int64 `json:"changed"`
}

// PurgeResult reports how many duplicate attendance records were removed.
type PurgeResult struct {
	Deleted int64 `json:"deleted"`
}

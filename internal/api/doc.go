// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package api provides the HTTP REST API layer for Punchsync.

This package implements the operator-facing endpoints for controlling and
observing the attendance sync engine. It is the only interface through which
an operator triggers runs, inspects state, and performs maintenance; the
scheduler drives the same sync manager internally.

Key Components:

  - Router: HTTP route configuration and middleware stack integration (Chi)
  - Handler: Request handlers for all API endpoints
  - Response formatting: Standardized JSON responses with metadata
  - Error handling: Consistent error responses with appropriate HTTP status codes
  - Authentication integration: JWT bearer auth via middleware
  - Rate limiting: Per-IP limits, stricter on login and trigger endpoints
  - CORS: Cross-Origin Resource Sharing for operator dashboards

API Categories:

The API is organized into the following categories:

1. Core Endpoints (/api/v1/):
  - Health check (health)
  - Authentication (auth/login)
  - Engine status (status)

2. Source Endpoints (/api/v1/source/):
  - Connectivity probe (probe)
  - Device token registration (token)

3. Sync Endpoints (/api/v1/sync/):
  - Dry-run preview of today's classified punches (preview)
  - Synchronous manual run (trigger)

4. Maintenance Endpoints (/api/v1/maintenance/):
  - Direction reclassification sweep (reclassify)
  - Duplicate purge (purge-duplicates)

5. WebSocket Endpoint (/api/v1/ws):
  - Live run-progress frames
  - Run completion broadcasts

6. Observability:
  - Prometheus metrics (/metrics)
  - OpenAPI UI (/swagger/*)

Usage Example:

	import (
	    "github.com/tomtom215/punchsync/internal/api"
	    "github.com/tomtom215/punchsync/internal/auth"
	    "github.com/tomtom215/punchsync/internal/database"
	)

	// Create dependencies
	db, _ := database.New(&cfg.Database)
	middleware := auth.NewMiddleware(jwtManager, &cfg.Security)

	// Create handler and router
	handler := api.NewHandler(db, syncManager, cfg, jwtManager, operator, wsHub, auditor)
	router := api.NewRouter(handler, middleware)

	// Setup routes and start server (Chi router)
	http.ListenAndServe(":8090", router.SetupChi())

Thread Safety:

All handlers are thread-safe and designed for concurrent request handling.
Shared resources (database, sync manager, WebSocket hub) are protected by
their respective synchronization primitives; the sync manager itself rejects
overlapping runs.

Security:

  - JWT token validation on all routes except health and login
  - Login rate limiting (5 attempts per 5 minutes per IP)
  - Input validation and sanitization
  - Device credentials exchanged for a token and sealed before storage
  - SQL injection prevention via parameterized queries

See Also:

  - internal/auth: Authentication and session tokens
  - internal/sync: Run orchestration
  - internal/database: Data access layer
  - internal/models: Request/response data structures
  - internal/middleware: HTTP middleware components
*/
package api

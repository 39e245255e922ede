// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/auth"
	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/middleware"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
	ws "github.com/tomtom215/punchsync/internal/websocket"
)

// Handler contains dependencies for API handlers
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, utility methods (this file)
//   - handlers_helpers.go: Shared helper functions
//   - handlers_auth.go: Login endpoint
//   - handlers_health.go: Health endpoint
//   - handlers_core.go: Status and WebSocket endpoints
//   - handlers_source.go: Source probe and token registration
//   - handlers_sync.go: Preview and manual trigger endpoints
//   - handlers_maintenance.go: Reclassify and purge-duplicates endpoints
type Handler struct {
	db         *database.DB
	sync       *syncpkg.Manager
	config     *config.Config
	jwtManager *auth.JWTManager
	operator   *auth.Operator
	wsHub      *ws.Hub
	auditor    *audit.Logger
	secLog     *logging.SecurityLogger
	startTime  time.Time
	perfMon    *middleware.PerformanceMonitor
}

// NewHandler creates a new API handler with all required dependencies.
//
// Dependencies:
//   - db: Database connection for data access
//   - syncMgr: Sync manager for runs, previews, and maintenance sweeps
//   - cfg: Application configuration
//   - jwtManager: JWT token manager for authentication (nil disables login)
//   - operator: Operator credential verifier (nil disables login)
//   - wsHub: WebSocket hub for live run-progress broadcasts (nil disables /ws)
//   - auditor: Audit trail for operator-initiated actions (nil disables auditing)
//
// The handler initializes with:
//   - Performance monitor tracking last 1000 requests
//   - Start time for uptime calculations
//
// Example:
//
//	handler := api.NewHandler(db, syncMgr, cfg, jwtManager, operator, wsHub, auditor)
//	router := api.NewRouter(handler, middleware)
//	http.ListenAndServe(":8090", router.SetupChi())
func NewHandler(db *database.DB, syncMgr *syncpkg.Manager, cfg *config.Config, jwtManager *auth.JWTManager, operator *auth.Operator, wsHub *ws.Hub, auditor *audit.Logger) *Handler {
	return &Handler{
		db:         db,
		sync:       syncMgr,
		config:     cfg,
		jwtManager: jwtManager,
		operator:   operator,
		wsHub:      wsHub,
		auditor:    auditor,
		secLog:     logging.NewSecurityLogger(),
		startTime:  time.Now(),
		perfMon:    middleware.NewPerformanceMonitor(1000), // Keep last 1000 requests
	}
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and timeouts.
// HandshakeTimeout protects against slow client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin
	// Only non-browser clients (curl, scripts, mobile apps) omit Origin header
	// Allowing empty Origin bypasses CORS entirely - security vulnerability
	if origin == "" {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	// Check against allowed origins from config
	for _, allowedOrigin := range h.config.Server.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Origin not in allowed list - sanitize origin to prevent log injection
	logging.Ctx(r.Context()).Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"github.com/tomtom215/punchsync/internal/auth"
)

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler       *Handler
	middleware    *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter wires the handler set and the auth middleware into a Chi
// middleware stack. CORS origins and the per-IP request budget come from
// the server configuration carried by the handler; a handler built
// without config falls back to the middleware defaults (no cross-origin
// access, standard rate limits).
func NewRouter(handler *Handler, middleware *auth.Middleware) *Router {
	var chiMw *ChiMiddleware
	if handler != nil && handler.config != nil {
		chiMw = NewChiMiddlewareFromConfig(
			handler.config.Server.CORSOrigins,
			handler.config.Server.RateLimitRPM,
		)
	} else {
		chiMw = NewChiMiddleware(nil)
	}

	return &Router{
		handler:       handler,
		middleware:    middleware,
		chiMiddleware: chiMw,
	}
}

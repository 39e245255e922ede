// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package api provides HTTP routing using Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/punchsync/internal/auth"
	"github.com/tomtom215/punchsync/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
// This allows our existing middleware to work with Chi's r.Use().
// Used for Authenticate (auth logic) and PrometheusMetrics.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight
	if router.handler != nil && router.handler.perfMon != nil {
		r.Use(router.handler.perfMon.Middleware) // Latency tracking with slow-request logging
	}

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting (1000/min) for health endpoints.
	// Allows frequent monitoring while preventing abuse
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.Compression))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// ========================
	// Authentication Endpoints
	// ========================
	// Strict rate limiting for auth endpoints (brute force prevention)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())

		// Login has strictest rate limiting (5 attempts per 5 minutes)
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.handler.Login)
	})

	// ========================
	// Core API Endpoints
	// ========================
	// All engine endpoints require authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.middleware.Authenticate))

		r.Get("/status", router.handler.Status)
		r.Get("/status/performance", router.handler.PerformanceStats)
		r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.handler.WebSocket)

		// Source terminal endpoints. Probe opens a live socket to the
		// terminal and token registration writes device credentials, so
		// both stay behind the standard authenticated stack.
		r.Route("/source", func(r chi.Router) {
			r.Post("/probe", router.handler.ProbeSource)
			r.Post("/token", router.handler.RegisterSourceToken)
			r.Delete("/token", router.handler.ClearSourceToken)
		})
	})

	// ========================
	// Sync Endpoints
	// ========================
	// Preview assembles a dry-run against the live terminal; trigger
	// takes the run mutex and persists
	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.middleware.Authenticate))

		r.With(router.chiMiddleware.RateLimit()).Get("/preview", router.handler.Preview)
		r.With(router.chiMiddleware.RateLimit()).Get("/runs", router.handler.SyncRuns)

		// Stricter rate limiting for sync triggers
		r.With(router.chiMiddleware.RateLimitSync()).Post("/trigger", router.handler.TriggerSync)
	})

	// ========================
	// Maintenance Endpoints
	// ========================
	// Admin only. These rewrite stored rows, so they share the sync
	// trigger's stricter rate limit
	r.Route("/api/v1/maintenance", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitSync())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(router.requireAdmin())

		r.Post("/reclassify", router.handler.Reclassify)
		r.Post("/purge-duplicates", router.handler.PurgeDuplicates)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}

// requireAdmin enforces the admin role on a route group. RequireRole
// layers on Authenticate internally, so groups using this do not mount
// Authenticate separately; doing both would validate the token twice.
func (router *Router) requireAdmin() func(http.Handler) http.Handler {
	return chiMiddleware(func(next http.HandlerFunc) http.HandlerFunc {
		return router.middleware.RequireRole(auth.RoleAdmin, next)
	})
}

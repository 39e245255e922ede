// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package middleware provides HTTP middleware components for the operator API.

This package implements infrastructure middleware for compression, performance
monitoring, and Prometheus metrics integration. These components work alongside
the authentication middleware to form the complete request-processing stack;
the api package adapts them into chi middleware. Request ID generation is
handled by chi's own middleware, wrapped with logging context in the api
package.

Key Components:

  - Compression: Gzip compression for JSON responses (preview payloads can
    carry a full day of punches)
  - Performance Monitor: Request latency tracking with percentile calculations
  - Prometheus Metrics: HTTP request/response instrumentation

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)
	handler = perfMon.Middleware(handler)

	stats := perfMon.GetStats()

Usage Example - Compression:

	http.Handle("/api/v1/attendance",
	    middleware.Compression(handler),
	)

WebSocket upgrade requests bypass compression so the connection hijack is not
broken by a wrapped response writer.

Thread Safety:

All middleware components are safe for concurrent use:
  - Compression uses a sync.Pool of gzip writers
  - Performance monitor guards its window with sync.RWMutex
  - Prometheus metrics use the client library's atomic collectors

See Also:

  - internal/auth: Authentication and login rate-limit middleware
  - internal/api: HTTP handlers and the chi adapter layer
  - internal/metrics: Prometheus metrics definitions
*/
package middleware

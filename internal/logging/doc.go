// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package logging provides centralized zerolog-based structured logging for Punchsync.
//
// This package implements a unified logging layer using zerolog, providing
// zero-allocation structured JSON logging for production and human-readable
// console output for development. Every component of the sync engine logs
// through it, so one Init call at startup configures the whole process.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Context-aware logging with request and correlation ID propagation
//   - slog adapter for Suture v4 integration
//   - Security-focused logging with sensitive data filtering
//
// # Quick Start
//
//	import "github.com/tomtom215/punchsync/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Caller: false,
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("run_id", runID).Msg("Sync run started")
//	logging.Error().Err(err).Int("attempt", n).Msg("Fetch failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Msg("Processing request")
//
// # Configuration
//
//	logging.Init(logging.Config{
//	    Level:  "debug",    // trace, debug, info, warn, error, fatal
//	    Format: "console",  // json or console
//	    Caller: true,       // Include caller file:line
//	    Output: os.Stderr,  // Output writer
//	})
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	// Good - structured, searchable, efficient
//	logging.Info().
//	    Str("worker_id", workerID).
//	    Int("fetched", count).
//	    Dur("elapsed", duration).
//	    Msg("Punches fetched")
//
//	// Avoid - unstructured, harder to parse
//	logging.Info().Msgf("Worker %s: %d punches in %v", workerID, count, duration)
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	syncLog := logging.With().Str("component", "sync").Logger()
//	syncLog.Info().Msg("Starting run")
//	syncLog.Error().Err(err).Msg("Run failed")
//
// # Context-Aware Logging
//
// The request ID middleware stores IDs in the context; Ctx pulls them back
// out so every log line of a request carries the same identifiers:
//
//	logging.Ctx(ctx).Info().Msg("Trigger accepted")
//	// {"level":"info","request_id":"uuid","correlation_id":"abc12345",...}
//
// # slog Adapter
//
// The package provides an slog adapter for libraries that require slog.Logger:
//
//	slogLogger := logging.NewSlogLogger()
//	// Use with Suture or other slog-compatible libraries
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
//	output := buf.String()
//
// # See Also
//
//   - github.com/rs/zerolog: Underlying logging library
//   - internal/api: request ID middleware that feeds Ctx
//   - internal/audit: Persistent audit trail (uses this package internally)
package logging

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package audit provides a durable action trail for compliance review.
//
// Attendance data feeds payroll, so anything that creates, skips, or rewrites
// records is worth a forensic trail: operator logins, credential rotation,
// sync run outcomes, per-punch skips, and the two maintenance operations.
//
// # Event Types
//
// Authentication events:
//   - auth.success: Successful operator login
//   - auth.failure: Failed login attempt
//
// Sync run events:
//   - sync.completed, sync.failed, sync.canceled: Terminal run disposition
//   - sync.punch_skipped: A punch that never reached the attendance store
//     (unmapped worker, sanity reject, or per-row store failure)
//
// Source credential events:
//   - source.token_registered: API token registered or rotated
//
// Maintenance events:
//   - maintenance.reclassify: Direction rewrite over the full history
//   - maintenance.purge_duplicates: Duplicate row purge
//
// # Architecture
//
// The audit system uses a producer-consumer pattern:
//
//	Logger.Log() -> Event Buffer (chan) -> Async Writer -> Store
//	                     |                      |
//	                 Non-blocking           Background goroutine
//
// Events are buffered in a channel to avoid blocking the caller. A background
// goroutine drains the buffer and persists events to the store. A full buffer
// drops the event with a warning rather than stalling a sync run.
//
// # Usage Example
//
//	store := audit.NewDuckDBStore(db.Conn())
//	if err := store.CreateTable(ctx); err != nil { ... }
//	logger := audit.NewLogger(store, audit.DefaultConfig())
//	defer logger.Close()
//
//	logger.LogAuthSuccess(ctx, username, role, audit.SourceFromRequest(r))
//	logger.LogSyncRun(ctx, run)
//
// Querying:
//
//	filter := audit.QueryFilter{
//	    Types: []audit.EventType{audit.EventTypeSyncFailed},
//	    RunID: runID,
//	    Limit: 100,
//	}
//	events, err := logger.Query(ctx, filter)
//
// # Retention
//
// Logger implements the supervised service contract; Serve runs the retention
// cleanup loop, deleting events older than RetentionDays every CleanupInterval.
//
// # Thread Safety
//
// All exported functions are safe for concurrent use.
package audit

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
schema.go - Database Schema Management

Tables:
  - workers: Worker directory with primary and secondary identifiers
  - worker_attributes: Custom attribute key/value pairs per worker, used by
    the configurable third identity fallback
  - attendance_events: Deduplicated IN/OUT attendance records
  - sync_runs: History of sync runs with per-outcome counts
  - sync_state: Key/value state, including the fetch watermark
  - source_credentials: Sealed API token for the attendance source

The audit_events table is owned by internal/audit, which creates it through
its store's CreateTable during startup.

Deduplication Strategy:
attendance_events carries no UNIQUE constraint on the duplicate key because
the key is configuration-dependent (device_label participates only when
dedupe_device_scope is enabled). Duplicate detection runs as a transactional
check-then-insert in attendance.go instead.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS workers (
			id UUID PRIMARY KEY,
			primary_id TEXT NOT NULL UNIQUE,
			user_id TEXT,
			name TEXT,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS worker_attributes (
			worker_id UUID NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (worker_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS attendance_events (
			id UUID PRIMARY KEY,
			worker_id UUID NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			direction TEXT NOT NULL,
			device_label TEXT NOT NULL DEFAULT '',
			source_worker_code TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id UUID PRIMARY KEY,
			window_start TIMESTAMP NOT NULL,
			window_end TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			trigger_kind TEXT NOT NULL DEFAULT 'scheduled',
			fetched INTEGER NOT NULL DEFAULT 0,
			classified INTEGER NOT NULL DEFAULT 0,
			resolved INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0,
			unmapped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS source_credentials (
			id INTEGER PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates indexes for common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		// Duplicate-key probe during persistence
		`CREATE INDEX IF NOT EXISTS idx_attendance_dedupe ON attendance_events (worker_id, timestamp, direction)`,
		// 24h totals and window queries
		`CREATE INDEX IF NOT EXISTS idx_attendance_timestamp ON attendance_events (timestamp)`,
		// Purge ordering (keep earliest created_at)
		`CREATE INDEX IF NOT EXISTS idx_attendance_created ON attendance_events (created_at)`,
		// Secondary identity fallback
		`CREATE INDEX IF NOT EXISTS idx_workers_user_id ON workers (user_id)`,
		// Custom attribute fallback
		`CREATE INDEX IF NOT EXISTS idx_worker_attributes_lookup ON worker_attributes (name, value)`,
		// Run history listing
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs (started_at)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}

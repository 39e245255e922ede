// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package database

import (
	"context"
	"time"

	"github.com/tomtom215/punchsync/internal/logging"
)

// runHistoryRetention bounds the sync run history kept by the janitor,
// matching the default punch age horizon.
const runHistoryRetention = 90 * 24 * time.Hour

// Janitor periodically sweeps expired sync run history and checkpoints
// the database after deletions so reclaimed space returns to the file.
type Janitor struct {
	db       *DB
	interval time.Duration
}

// NewJanitor builds a janitor sweeping at the given interval. A zero or
// negative interval disables the sweep; Serve then blocks until canceled.
func NewJanitor(db *DB, interval time.Duration) *Janitor {
	return &Janitor{db: db, interval: interval}
}

// Serve runs the sweep loop until the context is canceled. It implements
// the supervised service contract.
func (j *Janitor) Serve(ctx context.Context) error {
	if j.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-runHistoryRetention)
	deleted, err := j.db.PurgeOldRuns(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Run history cleanup error")
		return
	}
	if deleted == 0 {
		return
	}
	logging.Info().Int64("count", deleted).Msg("Cleaned up old sync runs")
	if err := j.db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint after run history cleanup failed")
	}
}

// String returns the service name for the supervisor.
func (j *Janitor) String() string {
	return "db-janitor"
}

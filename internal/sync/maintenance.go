// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"fmt"

	"github.com/tomtom215/punchsync/internal/classify"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// ReclassifyAll recomputes the direction of every stored attendance event
// from scratch and rewrites only the rows whose direction changed. Records
// are grouped per worker and calendar day in the source timezone, exactly
// like live classification, so running it twice changes zero rows the
// second time. It shares the run mutex with the pipeline.
func (m *Manager) ReclassifyAll(ctx context.Context) (int64, error) {
	if !m.runMu.TryLock() {
		return 0, ErrRunInFlight
	}
	defer m.runMu.Unlock()

	records, err := m.store.ListAttendanceOrdered(ctx)
	if err != nil {
		return 0, fmt.Errorf("list attendance: %w", err)
	}

	var updates []database.DirectionUpdate
	for start := 0; start < len(records); {
		day := classify.DayKey(records[start].Timestamp, m.loc)
		end := start + 1
		for end < len(records) &&
			records[end].WorkerID == records[start].WorkerID &&
			classify.DayKey(records[end].Timestamp, m.loc) == day {
			end++
		}

		group := records[start:end]
		for i, rec := range group {
			want := classify.Positional(i, len(group))
			if rec.Direction != want {
				updates = append(updates, database.DirectionUpdate{ID: rec.ID, Direction: want})
			}
		}
		start = end
	}

	var changed int64
	if len(updates) > 0 {
		changed, err = m.store.ApplyDirectionUpdates(ctx, updates)
		if err != nil {
			return 0, fmt.Errorf("apply direction updates: %w", err)
		}
	}

	metrics.RecordMaintenance("reclassify", int(changed))
	logging.Info().
		Int("records", len(records)).
		Int64("changed", changed).
		Msg("Reclassify completed")

	return changed, nil
}

// PurgeDuplicates removes redundant rows sharing a dedup key, keeping the
// earliest of each group. It shares the run mutex with the pipeline.
func (m *Manager) PurgeDuplicates(ctx context.Context) (int64, error) {
	if !m.runMu.TryLock() {
		return 0, ErrRunInFlight
	}
	defer m.runMu.Unlock()

	deleted, err := m.store.PurgeDuplicates(ctx, m.cfg.Sync.DedupeDeviceScope)
	if err != nil {
		return 0, fmt.Errorf("purge duplicates: %w", err)
	}

	metrics.RecordMaintenance("purge_duplicates", int(deleted))
	logging.Info().Int64("deleted", deleted).Msg("Purge duplicates completed")

	return deleted, nil
}

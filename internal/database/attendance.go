// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
attendance.go - Attendance Event Persistence

This file implements the deduplicating persister and the two maintenance
operations that run against the attendance store.

Duplicate Key:
A record is a duplicate when an existing row matches on
(worker_id, timestamp, direction), extended with device_label when device
scoping is enabled. Direction is always part of the key, so an IN and an OUT
at the same instant are distinct records.

Persistence runs check-then-insert inside a single transaction so concurrent
writers cannot both insert the same key.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/models"
)

// PersistAttendance inserts an attendance record unless an equal-keyed row
// already exists. Returns OutcomeCreated or OutcomeDuplicate; the record's
// ID and CreatedAt are populated on insert.
func (db *DB) PersistAttendance(ctx context.Context, rec *models.AttendanceRecord, deviceScope bool) (models.PersistOutcome, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	outcome, err := db.persistAttendanceTx(ctx, rec, deviceScope)
	metrics.RecordDBQuery("INSERT", "attendance_events", time.Since(start), err)
	return outcome, err
}

func (db *DB) persistAttendanceTx(ctx context.Context, rec *models.AttendanceRecord, deviceScope bool) (outcome models.PersistOutcome, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to begin transaction: %w", ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	query := `SELECT id FROM attendance_events WHERE worker_id = ? AND timestamp = ? AND direction = ?`
	args := []interface{}{rec.WorkerID, rec.Timestamp, string(rec.Direction)}
	if deviceScope {
		query += ` AND device_label = ?`
		args = append(args, rec.DeviceLabel)
	}

	var existingID string
	scanErr := tx.QueryRowContext(ctx, query, args...).Scan(&existingID)
	switch {
	case scanErr == nil:
		if err = tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit duplicate check: %w", err)
		}
		return models.OutcomeDuplicate, nil
	case !errors.Is(scanErr, sql.ErrNoRows):
		err = fmt.Errorf("failed to check for duplicate: %w", scanErr)
		return "", err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attendance_events (id, worker_id, timestamp, direction, device_label, source_worker_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.WorkerID, rec.Timestamp, string(rec.Direction), rec.DeviceLabel, rec.SourceWorkerCode, rec.CreatedAt,
	)
	if err != nil {
		err = fmt.Errorf("failed to insert attendance event: %w", err)
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit attendance insert: %w", err)
	}
	return models.OutcomeCreated, nil
}

// ListAttendanceOrdered returns every attendance event ordered by worker,
// timestamp, and insertion time. The reclassify maintenance operation
// regroups this stream into worker-days.
func (db *DB) ListAttendanceOrdered(ctx context.Context) ([]*models.AttendanceRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, worker_id, timestamp, direction, device_label, source_worker_code, created_at
		 FROM attendance_events
		 ORDER BY worker_id, timestamp, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance events: %w", err)
	}
	defer rows.Close()

	var records []*models.AttendanceRecord
	for rows.Next() {
		rec := &models.AttendanceRecord{}
		var direction string
		if err := rows.Scan(&rec.ID, &rec.WorkerID, &rec.Timestamp, &direction, &rec.DeviceLabel, &rec.SourceWorkerCode, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance event: %w", err)
		}
		rec.Direction = models.Direction(direction)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance events: %w", err)
	}
	return records, nil
}

// DirectionUpdate rewrites the direction of one stored event.
type DirectionUpdate struct {
	ID        string
	Direction models.Direction
}

// ApplyDirectionUpdates rewrites event directions in a single transaction
// and returns the number of rows changed.
func (db *DB) ApplyDirectionUpdates(ctx context.Context, updates []DirectionUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var affected int64
	stmt, err := tx.PrepareContext(ctx, `UPDATE attendance_events SET direction = ? WHERE id = ?`)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error().Err(rbErr).Msg("Transaction rollback failed")
		}
		return 0, fmt.Errorf("failed to prepare direction update: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for _, u := range updates {
		result, execErr := stmt.ExecContext(ctx, string(u.Direction), u.ID)
		if execErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).Msg("Transaction rollback failed")
			}
			return 0, fmt.Errorf("failed to update direction for %s: %w", u.ID, execErr)
		}
		n, raErr := result.RowsAffected()
		if raErr == nil {
			affected += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit direction updates: %w", err)
	}
	return affected, nil
}

// PurgeDuplicates deletes historical rows sharing a duplicate key, keeping
// the earliest created_at (ties broken by id). Returns the deleted count.
func (db *DB) PurgeDuplicates(ctx context.Context, deviceScope bool) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	partition := "worker_id, timestamp, direction"
	if deviceScope {
		partition += ", device_label"
	}

	query := fmt.Sprintf(`DELETE FROM attendance_events WHERE id IN (
		SELECT id FROM (
			SELECT id, row_number() OVER (PARTITION BY %s ORDER BY created_at, id) AS rn
			FROM attendance_events
		) ranked WHERE rn > 1
	)`, partition)

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query)
	metrics.RecordDBQuery("DELETE", "attendance_events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge duplicates: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected > 0 {
		logging.Info().Int64("deleted", affected).Bool("device_scope", deviceScope).Msg("Purged duplicate attendance events")
	}
	return affected, nil
}

// DirectionTotalsSince returns IN/OUT counts for events with timestamps at
// or after the cutoff. Backs the 24-hour totals in the status report.
func (db *DB) DirectionTotalsSince(ctx context.Context, since time.Time) (models.DirectionTotals, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var totals models.DirectionTotals
	rows, err := db.conn.QueryContext(ctx,
		`SELECT direction, COUNT(*) FROM attendance_events WHERE timestamp >= ? GROUP BY direction`, since)
	if err != nil {
		return totals, fmt.Errorf("failed to query direction totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var direction string
		var count int64
		if err := rows.Scan(&direction, &count); err != nil {
			return totals, fmt.Errorf("failed to scan direction total: %w", err)
		}
		switch models.Direction(direction) {
		case models.DirectionIn:
			totals.In = count
		case models.DirectionOut:
			totals.Out = count
		}
		totals.Total += count
	}
	return totals, rows.Err()
}

// CountAttendance returns the number of stored attendance events.
func (db *DB) CountAttendance(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendance events: %w", err)
	}
	return count, nil
}

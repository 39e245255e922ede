// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
)

// watermarkKey is the sync_state row holding the fetch watermark.
const watermarkKey = "fetch_watermark"

// InsertSyncRun records a newly started run.
func (db *DB) InsertSyncRun(ctx context.Context, run *models.SyncRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_runs (id, window_start, window_end, status, trigger_kind,
			fetched, classified, resolved, created, duplicates, unmapped, failed,
			error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Window.Start, run.Window.End, string(run.Status), run.Trigger,
		run.Counts.Fetched, run.Counts.Classified, run.Counts.Resolved,
		run.Counts.Created, run.Counts.Duplicate, run.Counts.Unmapped, run.Counts.Failed,
		nullable(run.Error), run.StartedAt, nullableTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// CompleteRun finalizes a run and, when watermark is non-zero, advances the
// fetch watermark in the same transaction. A run that succeeds but fails to
// move the watermark would refetch its whole window next cycle, so the two
// writes commit or roll back together.
func (db *DB) CompleteRun(ctx context.Context, run *models.SyncRun, watermark time.Time) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, fetched = ?, classified = ?, resolved = ?,
			created = ?, duplicates = ?, unmapped = ?, failed = ?, error = ?, completed_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Counts.Fetched, run.Counts.Classified, run.Counts.Resolved,
		run.Counts.Created, run.Counts.Duplicate, run.Counts.Unmapped, run.Counts.Failed,
		nullable(run.Error), nullableTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize sync run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		err = ErrRunNotFound
		return err
	}

	if !watermark.IsZero() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			watermarkKey, watermark.Format(time.RFC3339Nano), time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run completion: %w", err)
	}
	return nil
}

// GetLastRun returns the most recently started run, or ErrRunNotFound when
// no run has ever executed.
func (db *DB) GetLastRun(ctx context.Context) (*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, window_start, window_end, status, trigger_kind,
			fetched, classified, resolved, created, duplicates, unmapped, failed,
			error, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	return scanSyncRun(row)
}

// ListRuns returns run history ordered newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, window_start, window_end, status, trigger_kind,
			fetched, classified, resolved, created, duplicates, unmapped, failed,
			error, started_at, completed_at
		 FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PurgeOldRuns deletes run history started before the cutoff and returns
// the number of rows removed.
func (db *DB) PurgeOldRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sync_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sync runs: %w", err)
	}
	return deleted, nil
}

func scanSyncRun(row *sql.Row) (*models.SyncRun, error) {
	run := &models.SyncRun{}
	var status string
	var errText sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Window.Start, &run.Window.End, &status, &run.Trigger,
		&run.Counts.Fetched, &run.Counts.Classified, &run.Counts.Resolved,
		&run.Counts.Created, &run.Counts.Duplicate, &run.Counts.Unmapped, &run.Counts.Failed,
		&errText, &run.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.Error = errText.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return run, nil
}

func scanSyncRunRows(rows *sql.Rows) (*models.SyncRun, error) {
	run := &models.SyncRun{}
	var status string
	var errText sql.NullString
	var completedAt sql.NullTime

	err := rows.Scan(&run.ID, &run.Window.Start, &run.Window.End, &status, &run.Trigger,
		&run.Counts.Fetched, &run.Counts.Classified, &run.Counts.Resolved,
		&run.Counts.Created, &run.Counts.Duplicate, &run.Counts.Unmapped, &run.Counts.Failed,
		&errText, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.Error = errText.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return run, nil
}

// GetWatermark loads the fetch watermark. The boolean is false when no
// watermark has been stored yet.
func (db *DB) GetWatermark(ctx context.Context) (time.Time, bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, watermarkKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to load watermark: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse stored watermark %q: %w", value, err)
	}
	return t, true, nil
}

// SetWatermark stores the fetch watermark.
func (db *DB) SetWatermark(ctx context.Context, t time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		watermarkKey, t.Format(time.RFC3339Nano), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to store watermark: %w", err)
	}
	return nil
}

// nullableTime converts a zero time to NULL for optional TIMESTAMP columns.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
workers.go - Worker Directory Operations

This file provides database operations for the worker directory that identity
resolution runs against. A worker carries a unique primary identifier (the
enrollment code on the biometric device), an optional secondary user ID, and
arbitrary custom attributes stored in worker_attributes.

All identifier matching is exact: case-sensitive, whitespace-significant, no
normalization. The resolver depends on that.

Thread Safety:
UpsertWorker uses a mutex plus check-then-write so concurrent imports of the
same primary_id cannot create duplicate directory rows.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/models"
)

// workerMutex protects concurrent worker creation
var workerMutex sync.Mutex

// UpsertWorker inserts a worker or updates the existing row with the same
// primary_id. Custom attributes are replaced wholesale. Returns the stored
// worker and whether a new row was created.
func (db *DB) UpsertWorker(ctx context.Context, w *models.Worker) (*models.Worker, bool, error) {
	workerMutex.Lock()
	defer workerMutex.Unlock()

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	existing, err := db.getWorkerByPrimaryIDLocked(ctx, w.PrimaryID)
	if err != nil && !errors.Is(err, ErrWorkerNotFound) {
		return nil, false, fmt.Errorf("failed to check existing worker: %w", err)
	}

	now := time.Now()

	if existing != nil {
		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
		w.UpdatedAt = now

		_, err := db.conn.ExecContext(ctx,
			`UPDATE workers SET user_id = ?, name = ?, active = ?, updated_at = ? WHERE id = ?`,
			nullable(w.UserID), nullable(w.Name), w.Active, w.UpdatedAt, w.ID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update worker: %w", err)
		}

		if err := db.replaceWorkerAttributes(ctx, w.ID, w.Attributes); err != nil {
			return nil, false, err
		}
		return w, false, nil
	}

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO workers (id, primary_id, user_id, name, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.PrimaryID, nullable(w.UserID), nullable(w.Name), w.Active, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert worker: %w", err)
	}

	if err := db.replaceWorkerAttributes(ctx, w.ID, w.Attributes); err != nil {
		return nil, false, err
	}

	return w, true, nil
}

// replaceWorkerAttributes rewrites the attribute rows for a worker.
func (db *DB) replaceWorkerAttributes(ctx context.Context, workerID string, attrs map[string]string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM worker_attributes WHERE worker_id = ?`, workerID); err != nil {
		return fmt.Errorf("failed to clear worker attributes: %w", err)
	}

	for name, value := range attrs {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO worker_attributes (worker_id, name, value) VALUES (?, ?, ?)`,
			workerID, name, value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert worker attribute %q: %w", name, err)
		}
	}
	return nil
}

// GetWorkerByPrimaryID looks up a worker by its primary identifier.
// Returns ErrWorkerNotFound when no row matches.
func (db *DB) GetWorkerByPrimaryID(ctx context.Context, primaryID string) (*models.Worker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.getWorkerByPrimaryIDLocked(ctx, primaryID)
}

func (db *DB) getWorkerByPrimaryIDLocked(ctx context.Context, primaryID string) (*models.Worker, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, primary_id, user_id, name, active, created_at, updated_at
		 FROM workers WHERE primary_id = ?`, primaryID)
	return db.scanWorker(ctx, row)
}

// GetWorkerByUserID looks up a worker by its secondary user identifier.
// Returns ErrWorkerNotFound when no row matches.
func (db *DB) GetWorkerByUserID(ctx context.Context, userID string) (*models.Worker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, primary_id, user_id, name, active, created_at, updated_at
		 FROM workers WHERE user_id = ? ORDER BY created_at LIMIT 1`, userID)
	return db.scanWorker(ctx, row)
}

// GetWorkerByAttribute looks up a worker whose custom attribute equals the
// given value. Returns ErrWorkerNotFound when no row matches.
func (db *DB) GetWorkerByAttribute(ctx context.Context, name, value string) (*models.Worker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT w.id, w.primary_id, w.user_id, w.name, w.active, w.created_at, w.updated_at
		 FROM workers w
		 JOIN worker_attributes a ON a.worker_id = w.id
		 WHERE a.name = ? AND a.value = ?
		 ORDER BY w.created_at LIMIT 1`, name, value)
	return db.scanWorker(ctx, row)
}

// GetWorkerByID looks up a worker by its internal UUID.
func (db *DB) GetWorkerByID(ctx context.Context, id string) (*models.Worker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, primary_id, user_id, name, active, created_at, updated_at
		 FROM workers WHERE id = ?`, id)
	return db.scanWorker(ctx, row)
}

// scanWorker scans one worker row and attaches its custom attributes.
func (db *DB) scanWorker(ctx context.Context, row *sql.Row) (*models.Worker, error) {
	w := &models.Worker{}
	var userID, name sql.NullString

	err := row.Scan(&w.ID, &w.PrimaryID, &userID, &name, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to scan worker: %w", err)
	}
	w.UserID = userID.String
	w.Name = name.String

	attrs, err := db.loadWorkerAttributes(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	w.Attributes = attrs

	return w, nil
}

func (db *DB) loadWorkerAttributes(ctx context.Context, workerID string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, value FROM worker_attributes WHERE worker_id = ?`, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load worker attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan worker attribute: %w", err)
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

// ListWorkers returns all workers ordered by primary identifier.
func (db *DB) ListWorkers(ctx context.Context) ([]*models.Worker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, primary_id, user_id, name, active, created_at, updated_at
		 FROM workers ORDER BY primary_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		w := &models.Worker{}
		var userID, name sql.NullString
		if err := rows.Scan(&w.ID, &w.PrimaryID, &userID, &name, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		w.UserID = userID.String
		w.Name = name.String
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workers: %w", err)
	}

	for _, w := range workers {
		attrs, err := db.loadWorkerAttributes(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		w.Attributes = attrs
	}

	return workers, nil
}

// CountWorkers returns the number of workers in the directory.
func (db *DB) CountWorkers(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count workers: %w", err)
	}
	return count, nil
}

// DeleteWorker removes a worker and its attributes. Attendance events
// referencing the worker are retained.
func (db *DB) DeleteWorker(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM worker_attributes WHERE worker_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete worker attributes: %w", err)
	}

	result, err := db.conn.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete worker: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrWorkerNotFound
	}
	return nil
}

// nullable converts an empty string to NULL for optional TEXT columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

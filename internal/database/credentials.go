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
)

// SaveSourceToken stores the sealed API token, replacing any previous one.
// The token arrives already encrypted; this layer never sees plaintext.
func (db *DB) SaveSourceToken(ctx context.Context, sealed string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO source_credentials (id, token, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		sealed, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save source token: %w", err)
	}
	return nil
}

// GetSourceToken loads the sealed API token. Returns ErrNoCredentials when
// no token has been registered.
func (db *DB) GetSourceToken(ctx context.Context) (string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sealed string
	err := db.conn.QueryRowContext(ctx,
		`SELECT token FROM source_credentials WHERE id = 1`).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoCredentials
		}
		return "", fmt.Errorf("failed to load source token: %w", err)
	}
	return sealed, nil
}

// HasSourceToken reports whether a token has been registered.
func (db *DB) HasSourceToken(ctx context.Context) (bool, error) {
	_, err := db.GetSourceToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNoCredentials) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteSourceToken removes the stored token.
func (db *DB) DeleteSourceToken(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, `DELETE FROM source_credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete source token: %w", err)
	}
	return nil
}

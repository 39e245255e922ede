// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/punchsync/internal/logging"
)

var (
	// ErrWorkerNotFound is returned when no worker matches a directory lookup.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrRunNotFound is returned when a sync run ID does not exist.
	ErrRunNotFound = errors.New("sync run not found")

	// ErrNoCredentials is returned when no source token has been registered.
	ErrNoCredentials = errors.New("no source credentials stored")

	// ErrPersistence marks a store-level failure (connection lost, transaction
	// refused) as opposed to a row-level one. Callers abort the surrounding
	// batch when they see it.
	ErrPersistence = errors.New("persistence failure")
)

// closeWithLog closes a resource and logs any error. Use for cleanup where
// errors should be acknowledged but not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error. Use in
// error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !wal || !nats

package events

import (
	"context"
	"fmt"

	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/wal"
)

// errDurableUnavailable is returned by every stub operation.
var errDurableUnavailable = fmt.Errorf(`durable publisher not available: build with -tags="wal nats"`)

// DurablePublisher is a stub. This build lacks the wal tag, the nats tag,
// or both.
type DurablePublisher struct{}

// NewDurablePublisher returns an inert stub.
func NewDurablePublisher(inner *RunPublisher, w wal.WAL) *DurablePublisher {
	return &DurablePublisher{}
}

// PublishCreated fails on the stub.
func (dp *DurablePublisher) PublishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) error {
	return errDurableUnavailable
}

// EntryPublisher returns a publisher that always fails.
func (dp *DurablePublisher) EntryPublisher() wal.PublisherFunc {
	return func(ctx context.Context, entry *wal.Entry) error {
		return errDurableUnavailable
	}
}

// Close does nothing on the stub.
func (dp *DurablePublisher) Close() error {
	return nil
}

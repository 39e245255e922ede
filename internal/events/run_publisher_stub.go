// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !nats

package events

import (
	"context"

	"github.com/tomtom215/punchsync/internal/models"
)

// RunPublisher is a stub. This build has no NATS support.
type RunPublisher struct{}

// NewRunPublisher returns an inert stub.
func NewRunPublisher(p *Publisher, subject string) *RunPublisher {
	return &RunPublisher{}
}

// PublishCreated fails on the stub.
func (rp *RunPublisher) PublishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) error {
	return errNATSUnavailable
}

// Close does nothing on the stub.
func (rp *RunPublisher) Close() error {
	return nil
}

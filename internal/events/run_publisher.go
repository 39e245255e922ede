// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build nats

package events

import (
	"context"

	"github.com/tomtom215/punchsync/internal/models"
)

// RunPublisher announces records written by sync runs. It satisfies the
// sync manager's event publisher seam, converting persisted records into
// wire events before handing them to the Watermill publisher.
type RunPublisher struct {
	publisher *Publisher
	subject   string
}

// NewRunPublisher wraps p. An empty subject publishes to each event's
// default subject.
func NewRunPublisher(p *Publisher, subject string) *RunPublisher {
	return &RunPublisher{
		publisher: p,
		subject:   subject,
	}
}

// PublishCreated emits an AttendanceCreated event for rec.
func (rp *RunPublisher) PublishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) error {
	event := NewAttendanceCreated(runID, rec)

	subject := rp.subject
	if subject == "" {
		subject = event.Topic()
	}
	return rp.publisher.PublishEventTo(ctx, subject, event)
}

// Close shuts down the underlying publisher.
func (rp *RunPublisher) Close() error {
	return rp.publisher.Close()
}

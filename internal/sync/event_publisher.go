// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
)

// EventPublisher defines the interface for publishing created attendance
// records. This abstraction allows optional NATS integration without
// requiring the nats build tag for the sync package; internal/events
// implements it behind the tag.
type EventPublisher interface {
	// PublishCreated publishes one created attendance record to the event
	// bus. Errors are logged by the caller and never fail the run.
	PublishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) error
}

// SetEventPublisher installs the optional event publisher. Call before the
// manager starts serving; the manager reads it under lock per record.
func (m *Manager) SetEventPublisher(publisher EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = publisher
}

// publishCreated forwards a created record to the installed publisher, if
// any. Publish failures never fail the surrounding run: the durable
// publisher buffers them for retry and plain publishers just lose the event
// to at-least-once redelivery on the consumer side.
func (m *Manager) publishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) {
	m.mu.RLock()
	publisher := m.events
	m.mu.RUnlock()

	if publisher == nil {
		return
	}
	if err := publisher.PublishCreated(ctx, runID, rec); err != nil {
		logging.Warn().
			Err(err).
			Str("run_id", runID).
			Str("record_id", rec.ID).
			Msg("Failed to publish attendance event")
	}
}

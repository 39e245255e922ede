// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build wal && nats

package events

import (
	"context"
	"fmt"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/wal"
)

// DurablePublisher wraps a RunPublisher with write-ahead buffering. Every
// event hits BadgerDB before the broker, so a NATS outage loses nothing;
// the drainer republishes once the broker returns.
//
// PublishCreated never returns a broker error. The sync run's contract is
// that event delivery is best-effort; durability comes from the buffer,
// not from failing the run.
type DurablePublisher struct {
	inner *RunPublisher
	wal   *wal.BadgerWAL
}

// NewDurablePublisher wraps inner with the buffer w.
func NewDurablePublisher(inner *RunPublisher, w *wal.BadgerWAL) *DurablePublisher {
	return &DurablePublisher{
		inner: inner,
		wal:   w,
	}
}

// PublishCreated buffers, publishes, and confirms an event for rec.
func (dp *DurablePublisher) PublishCreated(ctx context.Context, runID string, rec *models.AttendanceRecord) error {
	event := NewAttendanceCreated(runID, rec)

	entryID, err := dp.wal.Write(ctx, event)
	if err != nil {
		// Buffer unavailable; attempt direct delivery rather than
		// dropping the event on the floor.
		logging.Warn().Err(err).Str("event_id", event.EventID).Msg("WAL write failed, publishing directly")
		if perr := dp.publishEvent(ctx, event); perr != nil {
			logging.Warn().Err(perr).Str("event_id", event.EventID).Msg("Direct publish failed, event lost")
		}
		return nil
	}

	if err := dp.publishEvent(ctx, event); err != nil {
		// Entry stays pending; the drainer retries it.
		logging.Warn().Err(err).Str("event_id", event.EventID).Str("entry_id", entryID).Msg("Publish failed, event buffered for retry")
		return nil
	}

	if err := dp.wal.Confirm(ctx, entryID); err != nil {
		// Worst case the drainer republishes and JetStream deduplicates
		// on the event ID.
		logging.Warn().Err(err).Str("entry_id", entryID).Msg("WAL confirm failed")
	}
	return nil
}

func (dp *DurablePublisher) publishEvent(ctx context.Context, event *AttendanceCreated) error {
	subject := dp.inner.subject
	if subject == "" {
		subject = event.Topic()
	}
	return dp.inner.publisher.PublishEventTo(ctx, subject, event)
}

// EntryPublisher adapts the publisher for the drainer and the startup
// recovery pass, which republish raw buffer entries.
func (dp *DurablePublisher) EntryPublisher() wal.PublisherFunc {
	return func(ctx context.Context, entry *wal.Entry) error {
		var event AttendanceCreated
		if err := entry.UnmarshalPayload(&event); err != nil {
			return fmt.Errorf("unmarshal buffered event: %w", err)
		}
		return dp.publishEvent(ctx, &event)
	}
}

// Close shuts down the underlying publisher. The buffer is closed
// separately by its owner.
func (dp *DurablePublisher) Close() error {
	return dp.inner.Close()
}

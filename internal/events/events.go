// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/models"
)

// SchemaVersion is the current event schema version. Bump on any breaking
// change to the AttendanceCreated shape so consumers can branch.
const SchemaVersion = 1

// SubjectCreated is the JetStream subject for new attendance records.
const SubjectCreated = "attendance.event.created"

// AttendanceCreated announces a record written by a sync run. It carries
// the full attendance tuple so consumers do not need a read path into the
// attendance store.
type AttendanceCreated struct {
	SchemaVersion    int              `json:"schema_version"`
	EventID          string           `json:"event_id"`
	RunID            string           `json:"run_id"`
	RecordID         string           `json:"record_id"`
	WorkerID         string           `json:"worker_id"`
	SourceWorkerCode string           `json:"source_worker_code"`
	Timestamp        time.Time        `json:"timestamp"`
	Direction        models.Direction `json:"direction"`
	DeviceLabel      string           `json:"device_label,omitempty"`
	EmittedAt        time.Time        `json:"emitted_at"`
}

// NewAttendanceCreated builds an event for a record created by runID.
func NewAttendanceCreated(runID string, rec *models.AttendanceRecord) *AttendanceCreated {
	return &AttendanceCreated{
		SchemaVersion:    SchemaVersion,
		EventID:          uuid.New().String(),
		RunID:            runID,
		RecordID:         rec.ID,
		WorkerID:         rec.WorkerID,
		SourceWorkerCode: rec.SourceWorkerCode,
		Timestamp:        rec.Timestamp.UTC(),
		Direction:        rec.Direction,
		DeviceLabel:      rec.DeviceLabel,
		EmittedAt:        time.Now().UTC(),
	}
}

// Validate checks that all required fields are present.
func (e *AttendanceCreated) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.RunID == "" {
		return &ValidationError{Field: "run_id", Message: "required"}
	}
	if e.WorkerID == "" {
		return &ValidationError{Field: "worker_id", Message: "required"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required"}
	}
	if !e.Direction.Explicit() {
		return &ValidationError{Field: "direction", Message: "must be IN or OUT"}
	}
	return nil
}

// Topic returns the publish subject for this event.
func (e *AttendanceCreated) Topic() string {
	return SubjectCreated
}

// ValidationError describes a missing or malformed event field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event field %s: %s", e.Field, e.Message)
}

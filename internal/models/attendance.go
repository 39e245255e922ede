// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package models

import "time"

// AttendanceRecord is the persisted attendance tuple. Direction is part of
// the identity key so an IN and an OUT sharing an identical timestamp (a
// real possibility with coarse device clocks) are both retained.
type AttendanceRecord struct {
	ID               string    `json:"id"`
	WorkerID         string    `json:"worker_id"`
	Timestamp        time.Time `json:"timestamp"`
	Direction        Direction `json:"direction"`
	DeviceLabel      string    `json:"device_label"`
	SourceWorkerCode string    `json:"source_worker_code"`
	CreatedAt        time.Time `json:"created_at"`
}

// PersistOutcome is the result of one persist attempt.
type PersistOutcome string

const (
	// OutcomeCreated means a new record was written.
	OutcomeCreated PersistOutcome = "created"
	// OutcomeDuplicate means a record already held the dedup key; nothing written.
	OutcomeDuplicate PersistOutcome = "duplicate"
	// OutcomeSkippedUnmapped means the event carried no worker mapping.
	// Counted apart from duplicates so identity gaps stay visible.
	OutcomeSkippedUnmapped PersistOutcome = "skipped_unmapped"
)

// Worker is one entry in the worker directory. PrimaryID and UserID are the
// first two resolution attributes; Attributes holds free-form keys for the
// configurable custom attribute fallback.
type Worker struct {
	ID         string            `json:"id"`
	PrimaryID  string            `json:"primary_id"`
	UserID     string            `json:"user_id"`
	Name       string            `json:"name,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Active     bool              `json:"active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

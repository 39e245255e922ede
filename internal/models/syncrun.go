// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package models

import "time"

// RunState names one stage of the sync pipeline. Reporting always executes,
// even after a failure in an earlier state.
type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateFetching    RunState = "fetching"
	RunStateClassifying RunState = "classifying"
	RunStateResolving   RunState = "resolving"
	RunStatePersisting  RunState = "persisting"
	RunStateReporting   RunState = "reporting"
)

// RunStatus is the terminal disposition of a run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Trigger kinds recorded on a run.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// RunCounts accounts for every fetched event. Each event lands in exactly
// one of Created, Duplicate, Unmapped, or Failed.
type RunCounts struct {
	Fetched    int `json:"fetched"`
	Classified int `json:"classified"`
	Resolved   int `json:"resolved"`
	Created    int `json:"created"`
	Duplicate  int `json:"duplicate"`
	Unmapped   int `json:"unmapped"`
	Failed     int `json:"failed"`
}

// EventFailure captures one per-event failure with enough context to
// re-diagnose it: the source code and the raw timestamp travel with the reason.
type EventFailure struct {
	SourceWorkerCode string    `json:"source_worker_code"`
	Timestamp        time.Time `json:"timestamp"`
	Reason           string    `json:"reason"`
}

// SyncRun is the run-scoped record of one orchestration pass: the fetch
// window, per-outcome counts, and any structured failures.
type SyncRun struct {
	ID          string         `json:"id"`
	Window      Window         `json:"window"`
	State       RunState       `json:"state"`
	Status      RunStatus      `json:"status"`
	Trigger     string         `json:"trigger"`
	Counts      RunCounts      `json:"counts"`
	Failures    []EventFailure `json:"failures,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// DirectionTotals splits a record count by direction.
type DirectionTotals struct {
	In    int64 `json:"in"`
	Out   int64 `json:"out"`
	Total int64 `json:"total"`
}

// StatusReport is the operator-facing statistics summary.
type StatusReport struct {
	Enabled          bool            `json:"enabled"`
	FrequencySeconds int             `json:"frequency_seconds"`
	Mode             SourceMode      `json:"mode"`
	LastRunAt        *time.Time      `json:"last_run_at,omitempty"`
	LastRunStatus    RunStatus       `json:"last_run_status,omitempty"`
	Watermark        *time.Time      `json:"watermark,omitempty"`
	Last24H          DirectionTotals `json:"last_24h"`
	ServerConfigured bool            `json:"server_configured"`
	TokenConfigured  bool            `json:"token_configured"`
}

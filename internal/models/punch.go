// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package models defines data structures shared across the Punchsync application.

package models

import "time"

// Direction classifies a punch as an arrival or a departure.
type Direction string

const (
	// DirectionIn marks an arrival punch.
	DirectionIn Direction = "IN"
	// DirectionOut marks a departure punch.
	DirectionOut Direction = "OUT"
	// DirectionUnspecified is the zero hint value. It never survives
	// classification; every event leaving the classifier is IN or OUT.
	DirectionUnspecified Direction = ""
)

// Explicit reports whether d carries an unambiguous IN or OUT value.
func (d Direction) Explicit() bool {
	return d == DirectionIn || d == DirectionOut
}

// SourceMode selects the transport used to reach the attendance source.
type SourceMode string

const (
	// SourceModeAPI polls an HTTP transaction API.
	SourceModeAPI SourceMode = "api"
	// SourceModeDevice opens a direct socket session to the terminal.
	SourceModeDevice SourceMode = "device"
)

// RawPunch is one biometric event as seen at the source, normalized from
// either transport. It exists only within a sync run.
type RawPunch struct {
	SourceWorkerCode  string    `json:"source_worker_code"`
	Timestamp         time.Time `json:"timestamp"`
	DirectionHint     Direction `json:"direction_hint,omitempty"`
	SourceDeviceLabel string    `json:"source_device_label"`
}

// ClassifiedEvent is a RawPunch with a resolved direction.
type ClassifiedEvent struct {
	RawPunch
	Direction Direction `json:"direction"`
}

// ResolvedEvent is a ClassifiedEvent with the worker identity reconciled.
// Mapped is false when no directory entry matched the source code; such
// events are never persisted but are always reported.
type ResolvedEvent struct {
	ClassifiedEvent
	WorkerID string `json:"worker_id,omitempty"`
	Mapped   bool   `json:"mapped"`
}

// Window is a half-open fetch interval [Start, End].
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ProbeResult is the outcome of a bare connectivity check against the
// source address. No authentication, single attempt.
type ProbeResult struct {
	Address   string `json:"address"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
}

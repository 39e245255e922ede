// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package sync orchestrates the attendance pipeline: fetch raw punches from
// the configured source, classify them into IN/OUT transactions, resolve
// worker identities, and persist the results with run-level accounting.
//
// One Manager owns the whole pipeline. A run walks a fixed state machine:
//
//	Idle -> Fetching -> Classifying -> Resolving -> Persisting -> Reporting -> Idle
//
// Reporting always executes, even when an earlier state aborts the run, so
// every run leaves a sync_runs row, an audit event, metrics, and a websocket
// completion frame behind.
//
// Concurrency model: at most one run executes at a time. Scheduled triggers
// pass through a capacity-1 pending gate (a second trigger parks, further
// triggers are dropped and counted); manual runs share the same mutex and
// surface ErrRunInFlight instead of queueing. The fetch window is
// [watermark - overlap, now]; the watermark only advances after a fully
// completed window, committed in the same transaction as the run row, so a
// failed or canceled run is retried over the same window and the dedup key
// absorbs the re-delivered events.
package sync

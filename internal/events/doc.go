// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package events publishes attendance record notifications to NATS
// JetStream through Watermill, for downstream consumers such as payroll
// exporters and door displays.
//
// # Pipeline
//
//	sync run persists record
//	        → AttendanceCreated event
//	        → WAL write (optional, -tags wal)
//	        → JetStream publish (circuit-breaker wrapped)
//	        → WAL confirm
//
// Publishing is strictly best-effort from the sync run's point of view: a
// broker outage never fails the run, because the record is already durable
// in the attendance store. With the wal tag, unpublished events survive in
// a BadgerDB buffer and drain once the broker returns.
//
// # Build Tags
//
//	go build ./cmd/server                      # events disabled, stubs only
//	go build -tags nats ./cmd/server           # direct publish
//	go build -tags "nats wal" ./cmd/server     # publish with durable buffer
//
// The event schema (AttendanceCreated), serializer, and configuration are
// untagged so tooling and tests compile in every build.
//
// # Delivery Semantics
//
// At-least-once. JetStream deduplicates on the message ID header within
// the stream's duplicate window, so a retry after a missed ack does not
// double-deliver. Consumers must still treat the event ID as idempotency
// key for longer horizons.
package events

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package wal provides a durable publish buffer backed by BadgerDB.
//
// Attendance events are written here before NATS publishing, so a NATS
// outage or process crash never loses a created-event notification. An
// entry is confirmed once the broker accepts the message and cleaned up
// by the next compaction pass.
//
// # Architecture
//
//	Event → WAL Write (ACID, fsync) → NATS Publish → WAL Confirm
//	                                              ↓ (on failure)
//	                                        Entry preserved for retry
//
// # Components
//
//   - BadgerWAL: core log implementation over BadgerDB
//   - Drainer: background loop that retries pending entries and compacts
//     confirmed ones
//   - RecoverPending: startup replay of entries left over from a previous run
//
// # Build Tags
//
// The package is gated behind the wal build tag:
//
//	# Build with the durable buffer
//	go build -tags "wal nats" ./cmd/server
//
//	# Build without it (no-op stub, direct publish only)
//	go build -tags nats ./cmd/server
//
// Without the tag, Open returns a NoOpWAL whose operations succeed and
// store nothing.
//
// # Why BadgerDB
//
// BadgerDB is pure Go (no CGO alongside the DuckDB driver), ACID with
// fsync, and carries native TTL support for entry expiry. An append-only
// file would risk corruption on power loss; the attendance store itself
// is not a fit because the buffer must survive independently of the
// database connection.
//
// # Thread Safety
//
// All operations are safe for concurrent use.
package wal

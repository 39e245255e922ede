// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package websocket carries live run-progress frames to connected operator
// clients.
//
// The Hub fans broadcast messages out to every registered client; the sync
// manager feeds it through its ProgressSink seam (BroadcastJSON), emitting a
// sync_state frame per pipeline transition and a sync_completed frame per
// finished run. Clients speak a minimal protocol: the server pings on a
// timer, clients may send {"type":"ping"} and receive {"type":"pong"}.
//
// Slow consumers never block a run: per-client send buffers drop the client
// when full, and the hub's own broadcast channel drops frames rather than
// backing up into the pipeline.
package websocket

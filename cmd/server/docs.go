// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package main provides the Punchsync HTTP server
//
// Punchsync syncs punch transactions from biometric attendance terminals
// into a deduplicated attendance event store, with an operator API for
// triggers, previews, and maintenance.
//
// @title Punchsync API
// @version 1.0
// @description REST API for the Punchsync biometric attendance sync engine. Fetches punch transactions from attendance terminals, classifies punch direction, resolves worker mappings, and persists deduplicated attendance events.
//
// @contact.name Punchsync
// @contact.url https://github.com/tomtom215/punchsync
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
package main

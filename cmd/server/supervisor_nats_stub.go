// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !nats

package main

import (
	"github.com/tomtom215/punchsync/internal/supervisor"
)

// AddNATSToSupervisor does nothing in builds without the nats tag, so
// main.go can call it unconditionally. The components argument is the nil
// returned by the stub InitNATS.
func AddNATSToSupervisor(_ *supervisor.SupervisorTree, _ *NATSComponents) {}

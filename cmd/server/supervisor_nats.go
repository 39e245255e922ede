// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build nats

package main

import (
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/supervisor"
	"github.com/tomtom215/punchsync/internal/supervisor/services"
)

// AddNATSToSupervisor hangs the event machinery off the supervisor tree:
// the NATS components (embedded server when configured, JetStream
// connection, Watermill run publisher) go into the messaging layer as one
// supervised service, and the WAL drainer goes into the data layer when
// WAL support is compiled in.
//
// A nil natsComponents means events are disabled in config; nothing is
// added and the tree runs without a messaging backend.
func AddNATSToSupervisor(tree *supervisor.SupervisorTree, natsComponents *NATSComponents) {
	if natsComponents == nil {
		return
	}
	tree.AddMessagingService(services.NewNATSComponentsService(natsComponents))
	logging.Info().Msg("NATS components added to supervisor tree (messaging layer)")

	// The data layer stops after the messaging layer, so the drainer
	// outlives the publisher; entries that fail to publish during
	// shutdown stay pending for the next boot
	if svc := natsComponents.walComponents.DrainService(); svc != nil {
		tree.AddDataService(svc)
		logging.Info().Msg("WAL drainer added to supervisor tree (data layer)")
	}
}

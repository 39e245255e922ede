// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !wal || !nats

package main

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/events"
	"github.com/tomtom215/punchsync/internal/logging"
	intsync "github.com/tomtom215/punchsync/internal/sync"
	"github.com/tomtom215/punchsync/internal/wal"
)

// WALComponents in builds without the wal tag is an empty shell; InitWAL
// returns a nil pointer so the publisher wiring falls through to the
// direct, non-durable path.
type WALComponents struct{}

// InitWAL warns when config points at a WAL directory the binary cannot
// use, then reports WAL as unavailable.
func InitWAL(_ context.Context, cfg *config.Config, _ *events.RunPublisher) (*WALComponents, error) {
	if cfg.Events.WALDir != "" {
		logging.Warn().Msg("EVENTS_WAL_DIR set but WAL support not compiled (build with -tags wal,nats)")
	}
	return nil, nil
}

func (c *WALComponents) EventPublisher() intsync.EventPublisher { return nil }

func (c *WALComponents) DrainService() suture.Service { return nil }

func (c *WALComponents) Stats() wal.Stats { return wal.Stats{} }

func (c *WALComponents) Close() {}

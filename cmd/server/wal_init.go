// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build wal && nats

package main

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/events"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/supervisor/services"
	intsync "github.com/tomtom215/punchsync/internal/sync"
	"github.com/tomtom215/punchsync/internal/wal"
)

// WALComponents holds WAL-related components for lifecycle management.
type WALComponents struct {
	wal       *wal.BadgerWAL
	drainer   *wal.Drainer
	publisher *events.DurablePublisher
}

// InitWAL initializes the write-ahead log for event durability.
//
// The WAL ensures no event loss: each attendance record is persisted to
// BadgerDB before the NATS publish, confirmed on broker ack, and retried
// by the drainer otherwise. Entries pending from a previous run are
// republished here before the first sync fires.
//
// The drainer is NOT started here. AddNATSToSupervisor hands it to the
// supervisor tree's data layer, which drives Start and Stop.
func InitWAL(ctx context.Context, cfg *config.Config, runPublisher *events.RunPublisher) (*WALComponents, error) {
	if cfg.Events.WALDir == "" {
		logging.Warn().Msg("WAL disabled (EVENTS_WAL_DIR empty). Events may be lost if NATS fails.")
		return nil, nil
	}

	walCfg := wal.ConfigForDir(cfg.Events.WALDir)
	if err := walCfg.Validate(); err != nil {
		return nil, err
	}

	logging.Info().Str("path", walCfg.Path).Bool("sync_writes", walCfg.SyncWrites).Msg("Initializing WAL...")

	w, err := wal.Open(&walCfg)
	if err != nil {
		return nil, err
	}

	components := &WALComponents{wal: w}

	durable := events.NewDurablePublisher(runPublisher, w)
	components.publisher = durable
	logging.Info().Msg("WAL-backed event publisher created")

	// The entry publisher republishes raw WAL entries through the same
	// NATS path; recovery and the drainer both use it
	entryPublisher := durable.EntryPublisher()

	logging.Info().Msg("Running WAL recovery for pending entries...")
	result, err := wal.RecoverPending(ctx, w, entryPublisher)
	if err != nil {
		// Recovery is best-effort; the drainer retries whatever remains
		logging.Warn().Err(err).Msg("WAL recovery error")
	} else if result != nil && result.TotalPending > 0 {
		logging.Info().
			Int("total", result.TotalPending).
			Int("recovered", result.Recovered).
			Int("failed", result.Failed).
			Int("expired", result.Expired).
			Msg("WAL recovery completed")
	}

	components.drainer = wal.NewDrainer(w, entryPublisher)

	logging.Info().Msg("WAL initialized successfully")
	return components, nil
}

// EventPublisher returns the WAL-backed publisher as a sync.EventPublisher
// interface. This provides a unified interface for callers regardless of
// WAL build tags. Returns nil if WAL is not initialized or disabled.
func (c *WALComponents) EventPublisher() intsync.EventPublisher {
	if c == nil || c.publisher == nil {
		return nil
	}
	return c.publisher
}

// DrainService wraps the drainer as a suture service for the supervisor
// tree's data layer. Returns nil if WAL is not initialized.
func (c *WALComponents) DrainService() suture.Service {
	if c == nil || c.drainer == nil {
		return nil
	}
	return services.NewWALDrainService(c.drainer)
}

// Stats returns current WAL statistics.
func (c *WALComponents) Stats() wal.Stats {
	if c == nil || c.wal == nil {
		return wal.Stats{}
	}
	return c.wal.Stats()
}

// Close stops the drainer if it is still running and closes the BadgerDB
// handle. In normal shutdown the supervisor tree has already stopped the
// drainer; the guard covers initialization failures before the tree runs.
func (c *WALComponents) Close() {
	if c == nil {
		return
	}

	if c.drainer != nil && c.drainer.IsRunning() {
		c.drainer.Stop()
		logging.Info().Msg("WAL drainer stopped")
	}

	if c.wal != nil {
		if err := c.wal.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing WAL")
		}
		logging.Info().Msg("WAL closed")
	}
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build nats

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/events"
	"github.com/tomtom215/punchsync/internal/logging"
	intsync "github.com/tomtom215/punchsync/internal/sync"
)

// NATSComponents holds all NATS-related components for lifecycle management.
type NATSComponents struct {
	server            *events.EmbeddedServer
	natsConn          *natsgo.Conn
	streamInitializer *events.StreamInitializer
	publisher         *events.Publisher
	runPublisher      *events.RunPublisher

	// WAL for event durability (optional, requires -tags wal,nats)
	walComponents *WALComponents

	// Event publisher wired into the sync manager (RunPublisher, or the
	// WAL-backed DurablePublisher when WAL is compiled in and configured)
	eventPublisher intsync.EventPublisher

	shutdownComplete chan struct{}
	mu               sync.Mutex
	running          bool
	shutdownDone     bool
}

// InitNATS initializes event publishing when EVENTS_ENABLED=true.
//
// The pipeline it builds:
//   - Embedded NATS server (if EVENTS_EMBEDDED=true), otherwise an
//     external broker at EVENTS_NATS_URL
//   - JetStream stream provisioned from EVENTS_STREAM / EVENTS_SUBJECT
//   - Watermill publisher with circuit breaker and MsgID deduplication
//   - RunPublisher converting persisted attendance records into
//     attendance.event.created messages
//   - WAL durability wrapper (requires -tags wal,nats, see wal_init.go)
//
// The resulting publisher is wired into syncManager so every record the
// persister writes is announced on the stream. Returns nil, nil when
// events are disabled.
func InitNATS(cfg *config.Config, syncManager *intsync.Manager) (*NATSComponents, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("NATS event publishing disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	logging.Info().Msg("Initializing NATS event publishing...")

	components := &NATSComponents{
		shutdownComplete: make(chan struct{}),
	}

	// Step 1: Initialize embedded NATS server if enabled
	publisherCfg := events.PublisherConfigFrom(&cfg.Events)
	if cfg.Events.Embedded {
		server, err := events.NewEmbeddedServer(events.ServerConfigFrom(&cfg.Events))
		if err != nil {
			return nil, err
		}
		components.server = server
		publisherCfg.URL = server.ClientURL()
		logging.Info().Str("url", publisherCfg.URL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", publisherCfg.URL).Msg("Using external NATS server")
	}

	// Step 2: Connect to NATS for stream provisioning
	nc, err := natsgo.Connect(publisherCfg.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.natsConn = nc
	logging.Info().Msg("NATS connection established")

	// Step 3: Initialize JetStream and ensure the stream exists
	js, err := jetstream.New(nc)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := events.StreamConfigFrom(&cfg.Events)
	streamInitializer := events.NewStreamInitializer(js, streamCfg)
	components.streamInitializer = streamInitializer

	ctx := context.Background()
	if err := streamInitializer.EnsureStream(ctx); err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	logging.Info().
		Str("name", streamCfg.Name).
		Strs("subjects", streamCfg.Subjects).
		Dur("max_age", streamCfg.MaxAge).
		Msg("JetStream stream ready")

	// Step 4: Create Publisher
	publisher, err := events.NewPublisher(publisherCfg)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, err
	}
	components.publisher = publisher
	logging.Info().Msg("NATS publisher created")

	// Step 5: Create RunPublisher for attendance record announcements
	runPublisher := events.NewRunPublisher(publisher, cfg.Events.Subject)
	components.runPublisher = runPublisher
	logging.Info().Str("subject", cfg.Events.Subject).Msg("Run publisher created")

	// Step 5b: Initialize WAL for event durability (if compiled in)
	// The WAL wraps the run publisher so records persist locally before
	// the broker acknowledges them
	walComponents, err := InitWAL(ctx, cfg, runPublisher)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("initialize WAL: %w", err)
	}
	components.walComponents = walComponents

	// Determine which event publisher the sync manager gets.
	// With WAL enabled, the durable publisher absorbs broker outages;
	// without it, publish failures are logged and the event is dropped.
	var eventPublisher intsync.EventPublisher = runPublisher
	if walComponents != nil {
		if durable := walComponents.EventPublisher(); durable != nil {
			eventPublisher = durable
			logging.Info().Msg("Using WAL-backed event publisher for durability")
		}
	}

	syncManager.SetEventPublisher(eventPublisher)
	logging.Info().Msg("Event publisher wired to sync manager")
	components.eventPublisher = eventPublisher

	components.mu.Lock()
	components.running = true
	components.mu.Unlock()

	logging.Info().Msg("NATS event publishing initialized successfully")
	return components, nil
}

// Start verifies that the event stream is reachable. It is called by the
// supervisor tree when the messaging layer starts and again on every
// restart, so a broker outage surfaces as a failing service rather than
// silently dropped events.
func (c *NATSComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.streamInitializer != nil {
		if err := c.streamInitializer.IsHealthy(ctx); err != nil {
			return fmt.Errorf("event stream health check: %w", err)
		}
		logging.Info().Msg("Event stream healthy")
	}

	logging.Info().Msg("All NATS components started")
	return nil
}

// Shutdown gracefully stops all NATS components.
//
// Shutdown order is critical for clean termination:
//  1. Close the run publisher (closes the underlying Watermill publisher)
//  2. Close the NATS connection
//  3. Shutdown the embedded server last
//
// The WAL is NOT closed here: the drainer runs in the supervisor tree's
// data layer, which stops after the messaging layer. CloseWAL handles the
// BadgerDB handle once the tree has fully stopped.
func (c *NATSComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.shutdownDone {
		c.mu.Unlock()
		return
	}
	c.shutdownDone = true
	c.running = false
	c.mu.Unlock()

	logging.Info().Msg("Shutting down NATS components...")

	c.shutdownPublisher()
	c.shutdownConnection(ctx)

	if c.shutdownComplete != nil {
		close(c.shutdownComplete)
	}
	logging.Info().Msg("NATS shutdown complete")
}

// shutdownPublisher closes the publish path exactly once. RunPublisher
// owns the Watermill publisher, so closing it covers both; the bare
// publisher is only closed directly when initialization failed between
// the two steps.
func (c *NATSComponents) shutdownPublisher() {
	if c.runPublisher != nil {
		if err := c.runPublisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing run publisher")
		}
		logging.Info().Msg("Run publisher closed")
		return
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
		logging.Info().Msg("Publisher closed")
	}
}

// shutdownConnection closes the NATS connection and embedded server.
func (c *NATSComponents) shutdownConnection(ctx context.Context) {
	if c.natsConn != nil {
		c.natsConn.Close()
		logging.Info().Msg("NATS connection closed")
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down NATS server")
		}
		logging.Info().Msg("Embedded NATS server stopped")
	}
}

// CloseWAL closes the write-ahead log. Called after the supervisor tree
// has stopped: the WAL drainer runs in the tree's data layer, so the
// BadgerDB handle must stay open until every service has exited.
func (c *NATSComponents) CloseWAL() {
	if c == nil || c.walComponents == nil {
		return
	}
	c.walComponents.Close()
}

// IsRunning returns whether NATS components are active.
func (c *NATSComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// EventPublisher returns the event publisher wired into the sync manager.
// Returns nil if NATS is not initialized.
func (c *NATSComponents) EventPublisher() intsync.EventPublisher {
	if c == nil {
		return nil
	}
	return c.eventPublisher
}

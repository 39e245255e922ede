// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build wal

package services

import (
	"context"
)

// WALDrainRunner interface matches the WAL drainer lifecycle.
//
// This interface allows the WAL service to work with the actual drainer
// without importing the wal package, avoiding circular dependencies.
//
// Satisfied by *wal.Drainer from internal/wal/drain.go:
//   - Start(ctx context.Context) - spawns the drain loop
//   - Stop() - signals the loop and waits for it to exit
//   - IsRunning() bool
type WALDrainRunner interface {
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// WALDrainService wraps the WAL drainer as a supervised service.
//
// The drainer retries failed event publishes from the BadgerDB write-ahead
// log and compacts confirmed and expired entries on a periodic cycle.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin the drain loop
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown (waits for the loop to exit)
//
// Example usage:
//
//	drainer := wal.NewDrainer(w, publisher)
//	svc := services.NewWALDrainService(drainer)
//	tree.AddDataService(svc)
type WALDrainService struct {
	drainer WALDrainRunner
	name    string
}

// NewWALDrainService creates a new WAL drain service wrapper.
func NewWALDrainService(drainer WALDrainRunner) *WALDrainService {
	return &WALDrainService{
		drainer: drainer,
		name:    "wal-drainer",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the drainer (which spawns its background goroutine)
//  2. Blocks until the context is canceled
//  3. Stops the drainer (which waits for the goroutine to complete)
//
// Start is idempotent in the drainer itself, so a supervisor restart after
// a crash elsewhere in the layer is safe.
func (s *WALDrainService) Serve(ctx context.Context) error {
	s.drainer.Start(ctx)

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop blocks until the drain goroutine exits per drain.go (stopDone)
	s.drainer.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *WALDrainService) String() string {
	return s.name
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the restart policy shared by every supervisor in the
// tree. Zero fields fall back to DefaultTreeConfig values.
type TreeConfig struct {
	// FailureThreshold is the failure score at which a supervisor stops
	// restarting and enters backoff.
	FailureThreshold float64

	// FailureDecay is the half-life, in seconds, of the failure score.
	FailureDecay float64

	// FailureBackoff is how long a supervisor waits before resuming
	// restarts once the threshold is crossed.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a service may take to stop before
	// it is reported as unstopped.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultTreeConfig.
func (c TreeConfig) withDefaults() TreeConfig {
	def := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = def.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = def.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// SupervisorTree is the process-wide supervision hierarchy:
//
//   - data: storage maintenance (WAL drainer, audit retention, run janitor)
//   - messaging: WebSocket hub, sync manager, scheduler, NATS components
//   - api: HTTP server
//
// Each layer restarts its own children, so a crash loop in messaging never
// takes down the API layer's ability to answer status and health requests.
type SupervisorTree struct {
	root      *suture.Supervisor
	data      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	logger    *slog.Logger
	config    TreeConfig
}

// NewSupervisorTree builds the three-layer tree. Supervisor events (service
// failures, restarts, backoff transitions) are logged through the given
// slog logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	config = config.withDefaults()

	// sutureslog's hook is built from a Handler value; MustHook has a
	// pointer receiver.
	eventHook := (&sutureslog.Handler{Logger: logger}).MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children share the restart policy and inherit the root's EventHook
	// when added.
	childSpec := rootSpec
	childSpec.EventHook = nil

	layer := func(name string) *suture.Supervisor {
		return suture.New(name, childSpec)
	}

	t := &SupervisorTree{
		root:      suture.New("punchsync", rootSpec),
		data:      layer("data-layer"),
		messaging: layer("messaging-layer"),
		api:       layer("api-layer"),
		logger:    logger,
		config:    config,
	}

	t.root.Add(t.data)
	t.root.Add(t.messaging)
	t.root.Add(t.api)

	return t, nil
}

// Root exposes the root supervisor for callers that need suture directly.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddDataService registers a storage maintenance service (WAL drainer,
// audit retention, run history janitor).
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddMessagingService registers a messaging-layer service (WebSocket hub,
// sync manager, scheduler, NATS components).
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService registers an API-layer service (the HTTP server).
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// RemoveMessagingService detaches a messaging-layer service by token.
func (t *SupervisorTree) RemoveMessagingService(token suture.ServiceToken) error {
	return t.messaging.Remove(token)
}

// Serve runs the tree and blocks until the context is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in its own goroutine and returns the
// channel that yields the terminal error once the tree stops.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
// Consult it when shutdown hangs to see which service is stuck.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove stops and detaches a service anywhere in the tree by token.
func (t *SupervisorTree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// RemoveAndWait removes a service and blocks until it has fully stopped
// or the timeout elapses.
func (t *SupervisorTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build nats

package services

import (
	"context"
	"fmt"
	"time"
)

// NATSComponentsRunner is the lifecycle surface of cmd/server's
// NATSComponents, kept as an interface here so this package never imports
// the main package.
type NATSComponentsRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// NATSComponentsService runs the NATS subsystems (embedded server when
// configured, JetStream connection, Watermill publisher) as one supervised
// unit: Start on entry, block until cancellation, Shutdown on the way out.
// A Start failure is returned directly so suture applies its restart
// backoff to broker connection problems.
//
//	natsComponents, _ := InitNATS(cfg, syncManager)
//	svc := services.NewNATSComponentsService(natsComponents)
//	tree.AddMessagingService(svc)
type NATSComponentsService struct {
	components      NATSComponentsRunner
	shutdownTimeout time.Duration
	name            string
}

// NewNATSComponentsService wraps the components with the default
// 10 second shutdown timeout, matching the supervisor tree default.
func NewNATSComponentsService(components NATSComponentsRunner) *NATSComponentsService {
	return NewNATSComponentsServiceWithTimeout(components, 10*time.Second)
}

// NewNATSComponentsServiceWithTimeout wraps the components with an
// explicit shutdown timeout. Non-positive values fall back to 10 seconds.
func NewNATSComponentsServiceWithTimeout(components NATSComponentsRunner, shutdownTimeout time.Duration) *NATSComponentsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSComponentsService{
		components:      components,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-components",
	}
}

// Serve implements suture.Service.
func (s *NATSComponentsService) Serve(ctx context.Context) error {
	if err := s.components.Start(ctx); err != nil {
		return fmt.Errorf("NATS components start failed: %w", err)
	}

	<-ctx.Done()

	// The serve context is already canceled; shutdown needs its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.components.Shutdown(shutdownCtx)

	return ctx.Err()
}

// String names the service in supervision logs.
func (s *NATSComponentsService) String() string {
	return s.name
}

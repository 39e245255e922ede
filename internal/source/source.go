// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package source normalizes biometric punch events from either supported
// transport into models.RawPunch. API mode polls an HTTP transaction
// endpoint with bearer authentication; device mode opens a direct socket
// session to the attendance terminal. The orchestrator stays
// transport-agnostic behind the Source interface.
package source

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/models"
)

// Failure taxonomy surfaced to the orchestrator. Callers branch with
// errors.Is; everything else wraps one of these.
var (
	// ErrSourceUnreachable covers network failures, timeouts, server 5xx,
	// and an open circuit breaker. The whole run aborts and retries the
	// same window later.
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrSourceAuth marks a rejected credential (HTTP 401/403 or a device
	// comm-key refusal). The orchestrator re-authenticates exactly once.
	ErrSourceAuth = errors.New("source authentication failed")

	// ErrSourceMalformed marks a response body that could not be
	// interpreted; the wrapped message carries a bounded payload excerpt.
	ErrSourceMalformed = errors.New("source returned malformed response")
)

// Source fetches raw punches for a time window and probes reachability.
type Source interface {
	// Fetch returns all punches inside the window. It mutates no shared
	// state beyond the network call itself.
	Fetch(ctx context.Context, window models.Window) ([]models.RawPunch, error)

	// Probe performs a bare TCP connectivity check: no authentication,
	// single attempt, short fixed timeout. Unreachable is a result, not
	// an error.
	Probe(ctx context.Context) (models.ProbeResult, error)

	// Mode reports which transport this source speaks.
	Mode() models.SourceMode
}

// TokenRegistrar is the extra capability of API-mode sources: exchanging
// credentials for a fresh bearer token. The orchestrator uses it for its
// single re-authentication attempt, and the operator API for token rotation.
type TokenRegistrar interface {
	RegisterToken(ctx context.Context, username, password string) (string, error)
}

// TokenSetter is the capability of sources whose bearer token can be
// replaced at runtime. Startup uses it to install a previously registered
// token, so a rotation survives a process restart.
type TokenSetter interface {
	SetToken(token string)
}

// New builds the source matching the resolved transport mode.
func New(cfg *config.SourceConfig, loc *time.Location) Source {
	if cfg.ResolvedMode() == models.SourceModeDevice {
		return NewDeviceClient(cfg, loc)
	}
	return NewAPIClient(cfg, loc)
}

// probeTimeout bounds the bare connectivity check.
const probeTimeout = 5 * time.Second

// probeAddress dials the address once over TCP and reports reachability
// with the observed connect latency.
func probeAddress(ctx context.Context, address string) (models.ProbeResult, error) {
	result := models.ProbeResult{Address: address}

	dialer := net.Dialer{Timeout: probeTimeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		return result, nil
	}
	_ = conn.Close()

	result.Reachable = true
	return result, nil
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	intsync "github.com/tomtom215/punchsync/internal/sync"
)

// NATSComponents in builds without the nats tag is an empty shell whose
// methods all do nothing. InitNATS returns a nil pointer so callers that
// check for nil skip the event path entirely.
type NATSComponents struct{}

// InitNATS warns when config asks for events the binary cannot deliver,
// then reports NATS as unavailable.
func InitNATS(cfg *config.Config, _ *intsync.Manager) (*NATSComponents, error) {
	if cfg.Events.Enabled {
		logging.Warn().Msg("EVENTS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

func (c *NATSComponents) Start(_ context.Context) error { return nil }

func (c *NATSComponents) Shutdown(_ context.Context) {}

func (c *NATSComponents) CloseWAL() {}

func (c *NATSComponents) IsRunning() bool { return false }

func (c *NATSComponents) EventPublisher() intsync.EventPublisher { return nil }

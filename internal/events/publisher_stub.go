// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !nats

package events

import (
	"context"
	"fmt"
)

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = fmt.Errorf("publisher is closed")

// errNATSUnavailable is returned by every stub operation.
var errNATSUnavailable = fmt.Errorf("NATS publisher not available: build with -tags=nats")

// Publisher is a stub. This build has no NATS support.
type Publisher struct{}

// NewPublisher fails; NATS support requires the nats build tag.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	return nil, errNATSUnavailable
}

// PublishEvent fails on the stub.
func (p *Publisher) PublishEvent(ctx context.Context, event *AttendanceCreated) error {
	return errNATSUnavailable
}

// PublishEventTo fails on the stub.
func (p *Publisher) PublishEventTo(ctx context.Context, subject string, event *AttendanceCreated) error {
	return errNATSUnavailable
}

// Close does nothing on the stub.
func (p *Publisher) Close() error {
	return nil
}

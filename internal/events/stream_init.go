// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/punchsync/internal/logging"
)

// JetStreamContext is the slice of the JetStream API the initializer
// needs. jetstream.JetStream satisfies it.
type JetStreamContext interface {
	Stream(ctx context.Context, stream string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	DeleteStream(ctx context.Context, stream string) error
}

// StreamInitializer provisions the attendance event stream. AutoProvision
// is off on the publisher, so the stream must exist before the first
// publish; EnsureStream runs once at startup.
type StreamInitializer struct {
	js  JetStreamContext
	cfg StreamConfig
}

// NewStreamInitializer creates an initializer for cfg.
func NewStreamInitializer(js JetStreamContext, cfg StreamConfig) *StreamInitializer {
	return &StreamInitializer{
		js:  js,
		cfg: cfg,
	}
}

// EnsureStream creates the stream, or updates its limits when it already
// exists. Idempotent; safe to run on every startup.
func (si *StreamInitializer) EnsureStream(ctx context.Context) error {
	streamCfg := jetstream.StreamConfig{
		Name:        si.cfg.Name,
		Subjects:    si.cfg.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      si.cfg.MaxAge,
		MaxBytes:    si.cfg.MaxBytes,
		MaxMsgs:     si.cfg.MaxMsgs,
		Duplicates:  si.cfg.DuplicateWindow,
		Replicas:    si.cfg.Replicas,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
		AllowRollup: true,
	}

	_, err := si.js.Stream(ctx, si.cfg.Name)
	if err == nil {
		if _, err := si.js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", si.cfg.Name, err)
		}
		logging.Debug().Str("stream", si.cfg.Name).Msg("JetStream stream updated")
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("look up stream %s: %w", si.cfg.Name, err)
	}

	if _, err := si.js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("create stream %s: %w", si.cfg.Name, err)
	}
	logging.Info().
		Str("stream", si.cfg.Name).
		Strs("subjects", si.cfg.Subjects).
		Msg("JetStream stream created")
	return nil
}

// GetStreamInfo returns broker-side stream state.
func (si *StreamInitializer) GetStreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := si.js.Stream(ctx, si.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("look up stream %s: %w", si.cfg.Name, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream info %s: %w", si.cfg.Name, err)
	}
	return info, nil
}

// IsHealthy reports whether the stream exists and is reachable.
func (si *StreamInitializer) IsHealthy(ctx context.Context) error {
	_, err := si.js.Stream(ctx, si.cfg.Name)
	return err
}

// Config returns the initializer's stream settings.
func (si *StreamInitializer) Config() StreamConfig {
	return si.cfg
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build wal

package wal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// Publisher delivers a buffered entry to the broker.
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry calls f(ctx, entry).
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// RecoveryResult summarizes one recovery pass.
type RecoveryResult struct {
	TotalPending int
	Recovered    int
	Failed       int
	Expired      int
	Skipped      int
	Errors       []error
	Duration     time.Duration
}

// RecoverPending republishes entries left pending by a previous process,
// typically after a crash between WAL write and broker confirm. Run it
// once at startup, before the Drainer starts. The pass is idempotent;
// entries that fail stay pending for the Drainer to retry.
func RecoverPending(ctx context.Context, w *BadgerWAL, pub Publisher) (*RecoveryResult, error) {
	if w == nil {
		return nil, fmt.Errorf("WAL cannot be nil")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}

	start := time.Now()
	result := &RecoveryResult{}

	entries, err := w.GetPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}
	result.TotalPending = len(entries)

	if len(entries) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	logging.Info().Int("pending", len(entries)).Msg("WAL recovery started")

	cfg := w.GetConfig()
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		processRecoveryEntry(ctx, w, pub, entry, cfg, result)
	}

	result.Duration = time.Since(start)
	metrics.RecordWALReplay(result.Recovered)

	logging.Info().
		Int("pending", result.TotalPending).
		Int("recovered", result.Recovered).
		Int("failed", result.Failed).
		Int("expired", result.Expired).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("WAL recovery finished")

	return result, nil
}

func processRecoveryEntry(ctx context.Context, w *BadgerWAL, pub Publisher, entry *Entry, cfg Config, result *RecoveryResult) {
	if !w.TryClaim(entry.ID) {
		result.Skipped++
		return
	}
	defer w.Release(entry.ID)

	if cfg.EntryTTL > 0 && time.Since(entry.CreatedAt) > cfg.EntryTTL {
		if err := w.DeleteEntry(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
			result.Errors = append(result.Errors, fmt.Errorf("delete expired entry %s: %w", entry.ID, err))
		}
		metrics.RecordWALDropped("expired")
		result.Expired++
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err := pub.PublishEntry(pubCtx, entry)
	cancel()
	if err != nil {
		if uerr := w.UpdateAttempt(ctx, entry.ID, err.Error()); uerr != nil && !errors.Is(uerr, ErrEntryNotFound) {
			result.Errors = append(result.Errors, fmt.Errorf("record attempt for %s: %w", entry.ID, uerr))
		}
		result.Failed++
		return
	}

	if err := w.Confirm(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		result.Errors = append(result.Errors, fmt.Errorf("confirm entry %s: %w", entry.ID, err))
	}
	result.Recovered++
}

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
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
)

// publishTimeout bounds a single retry publish so one slow broker call
// cannot stall the whole drain cycle.
const publishTimeout = 10 * time.Second

// maxBackoff caps the exponential retry backoff.
const maxBackoff = 5 * time.Minute

// Drainer retries pending entries and compacts confirmed ones in the
// background. One Drainer per WAL; start it after the initial recovery
// pass so crash-era entries go out first.
type Drainer struct {
	wal       *BadgerWAL
	publisher Publisher

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopDone chan struct{}
}

// NewDrainer creates a Drainer for w that delivers entries through pub.
func NewDrainer(w *BadgerWAL, pub Publisher) *Drainer {
	return &Drainer{
		wal:       w,
		publisher: pub,
	}
}

// Start launches the background loop. Calling Start on a running Drainer
// is a no-op.
func (d *Drainer) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.stopDone = make(chan struct{})

	go d.run(ctx, d.stopCh, d.stopDone)

	cfg := d.wal.GetConfig()
	logging.Info().
		Dur("retry_interval", cfg.RetryInterval).
		Dur("compact_interval", cfg.CompactInterval).
		Msg("WAL drainer started")
}

// Stop halts the loop and waits for the current cycle to finish.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stopCh := d.stopCh
	stopDone := d.stopDone
	d.mu.Unlock()

	close(stopCh)
	<-stopDone

	logging.Info().Msg("WAL drainer stopped")
}

// IsRunning reports whether the loop is active.
func (d *Drainer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, stopDone chan<- struct{}) {
	defer close(stopDone)

	cfg := d.wal.GetConfig()
	retryTicker := time.NewTicker(cfg.RetryInterval)
	defer retryTicker.Stop()
	compactTicker := time.NewTicker(cfg.CompactInterval)
	defer compactTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-retryTicker.C:
			d.drainPending(ctx)
		case <-compactTicker.C:
			d.compact(ctx)
		}
	}
}

// retryResult classifies the outcome of one entry's retry attempt.
type retryResult int

const (
	retrySuccess retryResult = iota
	retryFailed
	retryExpired
	retryExhausted
	retrySkipped
	retryCanceled
)

// drainPending walks the pending entries and republishes the ones whose
// backoff window has elapsed.
func (d *Drainer) drainPending(ctx context.Context) {
	entries, err := d.wal.GetPending(ctx)
	if err != nil {
		if !errors.Is(err, ErrWALClosed) {
			logging.Warn().Err(err).Msg("WAL drain failed to list pending entries")
		}
		return
	}
	if len(entries) == 0 {
		return
	}

	var succeeded, failed, expired, exhausted int
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch d.processEntry(ctx, entry) {
		case retrySuccess:
			succeeded++
		case retryFailed:
			failed++
		case retryExpired:
			expired++
		case retryExhausted:
			exhausted++
		case retrySkipped, retryCanceled:
		}
	}

	if succeeded > 0 || failed > 0 || expired > 0 || exhausted > 0 {
		logging.Debug().
			Int("pending", len(entries)).
			Int("succeeded", succeeded).
			Int("failed", failed).
			Int("expired", expired).
			Int("exhausted", exhausted).
			Msg("WAL drain cycle")
	}

	d.wal.Stats()
}

func (d *Drainer) processEntry(ctx context.Context, entry *Entry) retryResult {
	if !d.wal.TryClaim(entry.ID) {
		return retrySkipped
	}
	defer d.wal.Release(entry.ID)

	cfg := d.wal.GetConfig()

	if cfg.EntryTTL > 0 && time.Since(entry.CreatedAt) > cfg.EntryTTL {
		if err := d.wal.DeleteEntry(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("WAL failed to delete expired entry")
		}
		metrics.RecordWALDropped("expired")
		return retryExpired
	}

	if entry.Attempts >= cfg.MaxRetries {
		logging.Warn().
			Str("entry_id", entry.ID).
			Int("attempts", entry.Attempts).
			Str("last_error", entry.LastError).
			Msg("WAL entry exhausted retries, dropping")
		if err := d.wal.DeleteEntry(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("WAL failed to delete exhausted entry")
		}
		metrics.RecordWALDropped("exhausted")
		return retryExhausted
	}

	if !d.isReadyForRetry(entry, cfg) {
		return retrySkipped
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err := d.publisher.PublishEntry(pubCtx, entry)
	cancel()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return retryCanceled
		}
		if uerr := d.wal.UpdateAttempt(ctx, entry.ID, err.Error()); uerr != nil && !errors.Is(uerr, ErrEntryNotFound) {
			logging.Warn().Err(uerr).Str("entry_id", entry.ID).Msg("WAL failed to record attempt")
		}
		return retryFailed
	}

	if err := d.wal.Confirm(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("WAL failed to confirm republished entry")
	}
	return retrySuccess
}

// isReadyForRetry applies exponential backoff based on the attempt count.
func (d *Drainer) isReadyForRetry(entry *Entry, cfg Config) bool {
	if entry.Attempts == 0 {
		return true
	}
	return time.Since(entry.LastAttemptAt) >= calculateBackoff(cfg.RetryBackoff, entry.Attempts)
}

// calculateBackoff returns base * 2^attempts capped at maxBackoff. Attempt
// counts past 50 shift out of int64 range, so they jump straight to the cap.
func calculateBackoff(base time.Duration, attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	backoff := base * time.Duration(1<<uint(attempts))
	if backoff <= 0 || backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// compact removes confirmed and expired entries, then reclaims value log
// space. Runs on CompactInterval.
func (d *Drainer) compact(ctx context.Context) {
	confirmed, err := d.deleteConfirmed(ctx)
	if err != nil && !errors.Is(err, ErrWALClosed) {
		logging.Warn().Err(err).Msg("WAL compaction failed to delete confirmed entries")
	}

	expired, err := d.deleteExpired(ctx)
	if err != nil && !errors.Is(err, ErrWALClosed) {
		logging.Warn().Err(err).Msg("WAL compaction failed to delete expired entries")
	}

	if err := d.wal.RunGC(); err != nil && !errors.Is(err, ErrWALClosed) {
		logging.Warn().Err(err).Msg("WAL value log GC failed")
	}

	if confirmed > 0 || expired > 0 {
		logging.Info().
			Int("confirmed_removed", confirmed).
			Int("expired_removed", expired).
			Msg("WAL compacted")
	}
}

// deleteConfirmed drops all confirmed entries. Keys are collected first;
// BadgerDB does not allow deletes inside a read iterator.
func (d *Drainer) deleteConfirmed(ctx context.Context) (int, error) {
	keys, err := d.collectKeys(ctx, prefixConfirmed, nil)
	if err != nil {
		return 0, err
	}
	return d.deleteKeys(keys)
}

// deleteExpired drops pending entries older than EntryTTL. BadgerDB's own
// TTL eviction is lazy, so this keeps the pending scan short.
func (d *Drainer) deleteExpired(ctx context.Context) (int, error) {
	cfg := d.wal.GetConfig()
	if cfg.EntryTTL <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-cfg.EntryTTL)

	keys, err := d.collectKeys(ctx, prefixPending, func(entry *Entry) bool {
		return entry.CreatedAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}

	n, err := d.deleteKeys(keys)
	for i := 0; i < n; i++ {
		metrics.RecordWALDropped("expired")
	}
	return n, err
}

// collectKeys gathers keys under prefix, optionally filtered by the decoded
// entry. Entries that fail to decode are collected for deletion.
func (d *Drainer) collectKeys(ctx context.Context, prefix string, match func(*Entry) bool) ([][]byte, error) {
	d.wal.mu.RLock()
	if d.wal.closed {
		d.wal.mu.RUnlock()
		return nil, ErrWALClosed
	}
	d.wal.mu.RUnlock()

	var keys [][]byte
	err := d.wal.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = match != nil
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			key := item.KeyCopy(nil)

			if match == nil {
				keys = append(keys, key)
				continue
			}

			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil || match(&entry) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect keys: %w", err)
	}
	return keys, nil
}

func (d *Drainer) deleteKeys(keys [][]byte) (int, error) {
	deleted := 0
	for _, key := range keys {
		err := d.wal.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return deleted, fmt.Errorf("delete key %s: %w", key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
run.go - Single Sync Run Pipeline

One call to execute() walks the full state machine for one run:

	Fetching -> Classifying -> Resolving -> Persisting -> Reporting

Failure taxonomy:
  - Per-event failures (resolver query error, insert error on one row,
    timestamp sanity rejects) are counted as Failed and the run continues.
  - Whole-run failures (source unreachable, auth still failing after the
    single re-auth, store down) abort the pipeline; Reporting still runs
    and the watermark stays where it was, so the next run retries the
    same window.
  - Cancellation finishes the current event, stops at the next event
    boundary, keeps partial writes, and reports status canceled.

The watermark advances to the window upper bound only for a succeeded run,
committed atomically with the run row.
*/
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/classify"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
)

// finalizeTimeout bounds the Reporting state. It uses a fresh context so a
// canceled run still writes its terminal row.
const finalizeTimeout = 10 * time.Second

// Skip kinds recorded on audit events for punches that never reach the store.
const (
	skipUnmappedWorker = "unmapped_worker"
	skipResolveError   = "resolve_error"
	skipPersistError   = "persist_error"
	skipFutureStamp    = "future_timestamp"
	skipStaleStamp     = "stale_timestamp"
)

// execute runs the whole pipeline for one trigger. It never returns an
// error: every outcome lands on the returned run's Status and Error fields.
// Callers must hold runMu.
func (m *Manager) execute(ctx context.Context, trigger string) *models.SyncRun {
	start := time.Now()
	run := &models.SyncRun{
		ID:        uuid.NewString(),
		Window:    m.nextWindow(ctx, start),
		State:     models.RunStateIdle,
		Trigger:   trigger,
		StartedAt: start,
	}
	metrics.RecordTrigger(trigger)

	logging.Info().
		Str("run_id", run.ID).
		Str("trigger", trigger).
		Time("window_start", run.Window.Start).
		Time("window_end", run.Window.End).
		Msg("Sync run starting")

	if err := m.store.InsertSyncRun(ctx, run); err != nil {
		// Without a run row there is nothing to finalize against.
		run.Status = models.RunStatusFailed
		run.Error = fmt.Sprintf("record run: %v", err)
		run.CompletedAt = time.Now()
		logging.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record sync run")
		metrics.RecordSyncError("run_insert")
		metrics.RecordSyncRun(string(run.Status), time.Since(start), 0)
		return run
	}

	canceled, abortErr := m.pipeline(ctx, run)

	// Reporting always executes.
	m.transition(run, models.RunStateReporting)
	m.finalize(run, abortErr, canceled, start)
	return run
}

// pipeline walks Fetching through Persisting, reporting whether the run was
// canceled mid-flight and any aborting error.
func (m *Manager) pipeline(ctx context.Context, run *models.SyncRun) (bool, error) {
	m.transition(run, models.RunStateFetching)
	punches, err := m.fetchWithReauth(ctx, run.Window)
	if err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		return false, fmt.Errorf("fetch: %w", err)
	}
	run.Counts.Fetched = len(punches)

	m.transition(run, models.RunStateClassifying)
	events := classify.Classify(punches, m.loc)
	run.Counts.Classified = len(events)

	m.transition(run, models.RunStateResolving)
	resolved, canceled := m.resolveEvents(ctx, run, events)
	if canceled {
		return true, nil
	}

	m.transition(run, models.RunStatePersisting)
	return m.persistEvents(ctx, run, resolved)
}

// fetchWithReauth fetches the window, re-authenticating exactly once when
// the source rejects the current token. A second auth failure aborts.
func (m *Manager) fetchWithReauth(ctx context.Context, window models.Window) ([]models.RawPunch, error) {
	punches, err := m.source.Fetch(ctx, window)
	if err == nil || !errors.Is(err, source.ErrSourceAuth) {
		return punches, err
	}

	registrar, ok := m.source.(source.TokenRegistrar)
	if !ok || m.cfg.Source.Username == "" {
		return nil, err
	}

	logging.Info().Msg("Source rejected token, re-authenticating once")
	metrics.RecordSourceReauth()

	token, regErr := registrar.RegisterToken(ctx, m.cfg.Source.Username, m.cfg.Source.Password)
	if regErr != nil {
		return nil, fmt.Errorf("re-authentication failed: %w", regErr)
	}
	if storeErr := m.storeToken(ctx, token); storeErr != nil {
		// The refreshed token is live on the client; losing the sealed
		// copy only costs a re-auth after the next restart.
		logging.Warn().Err(storeErr).Msg("Refreshed token could not be stored")
	}
	if m.auditor != nil {
		m.auditor.LogTokenRegistered(ctx, audit.SystemActor(), audit.Source{}, m.cfg.Source.Username)
	}

	return m.source.Fetch(ctx, window)
}

// resolveEvents maps classified events to directory workers. Resolver
// errors are per-event failures; unmapped workers pass through for the
// persist stage to account. Every punch of a worker-day shares one source
// code, so lookup outcomes are memoized for the run; errors are not, so a
// transient store failure retries on the next event with the same code.
func (m *Manager) resolveEvents(ctx context.Context, run *models.SyncRun, events []models.ClassifiedEvent) ([]models.ResolvedEvent, bool) {
	type workerMapping struct {
		workerID string
		mapped   bool
	}

	memo := make(map[string]workerMapping)
	resolved := make([]models.ResolvedEvent, 0, len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			return resolved, true
		}

		var res models.ResolvedEvent
		if hit, ok := memo[ev.SourceWorkerCode]; ok {
			res = models.ResolvedEvent{ClassifiedEvent: ev, WorkerID: hit.workerID, Mapped: hit.mapped}
		} else {
			var err error
			res, err = m.resolver.Resolve(ctx, ev)
			if err != nil {
				m.recordEventFailure(run, ev.RawPunch, fmt.Sprintf("resolve: %v", err), skipResolveError)
				continue
			}
			memo[ev.SourceWorkerCode] = workerMapping{workerID: res.WorkerID, mapped: res.Mapped}
		}

		if res.Mapped {
			run.Counts.Resolved++
		}
		resolved = append(resolved, res)
	}
	return resolved, false
}

// persistEvents writes resolved events through the dedup gate. A store-level
// failure aborts the run; row-level failures count and continue.
func (m *Manager) persistEvents(ctx context.Context, run *models.SyncRun, resolved []models.ResolvedEvent) (bool, error) {
	now := time.Now()
	futureLimit := now.Add(time.Duration(m.cfg.Sync.RejectFutureMinutes) * time.Minute)
	ageLimit := now.AddDate(0, 0, -m.cfg.Sync.MaxAgeDays)

	for _, ev := range resolved {
		if ctx.Err() != nil {
			return true, nil
		}

		if !ev.Mapped {
			run.Counts.Unmapped++
			m.auditPunchSkipped(run.ID, ev.RawPunch, skipUnmappedWorker)
			continue
		}
		if ev.Timestamp.After(futureLimit) {
			m.recordEventFailure(run, ev.RawPunch, "timestamp in the future", skipFutureStamp)
			continue
		}
		if ev.Timestamp.Before(ageLimit) {
			m.recordEventFailure(run, ev.RawPunch,
				fmt.Sprintf("timestamp older than %d days", m.cfg.Sync.MaxAgeDays), skipStaleStamp)
			continue
		}

		rec := &models.AttendanceRecord{
			WorkerID:         ev.WorkerID,
			Timestamp:        ev.Timestamp,
			Direction:        ev.Direction,
			DeviceLabel:      ev.SourceDeviceLabel,
			SourceWorkerCode: ev.SourceWorkerCode,
		}

		outcome, err := m.store.PersistAttendance(ctx, rec, m.cfg.Sync.DedupeDeviceScope)
		if err != nil {
			if errors.Is(err, database.ErrPersistence) {
				return false, fmt.Errorf("persist: %w", err)
			}
			m.recordEventFailure(run, ev.RawPunch, fmt.Sprintf("persist: %v", err), skipPersistError)
			continue
		}

		switch outcome {
		case models.OutcomeCreated:
			run.Counts.Created++
			m.publishCreated(ctx, run.ID, rec)
		case models.OutcomeDuplicate:
			run.Counts.Duplicate++
		case models.OutcomeSkippedUnmapped:
			run.Counts.Unmapped++
			m.auditPunchSkipped(run.ID, ev.RawPunch, skipUnmappedWorker)
		}
	}
	return false, nil
}

// finalize is the Reporting state: terminal status, atomic run-row plus
// watermark commit, audit, metrics, and the completion broadcast. It uses a
// fresh context so a canceled run still reports.
func (m *Manager) finalize(run *models.SyncRun, abortErr error, canceled bool, start time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	run.CompletedAt = time.Now()
	switch {
	case canceled:
		run.Status = models.RunStatusCanceled
	case abortErr != nil:
		run.Status = models.RunStatusFailed
		run.Error = abortErr.Error()
		metrics.RecordSyncError(classifyRunError(abortErr))
	default:
		run.Status = models.RunStatusSucceeded
	}

	var watermark time.Time
	if run.Status == models.RunStatusSucceeded {
		watermark = run.Window.End
	}

	if err := m.store.CompleteRun(ctx, run, watermark); err != nil {
		logging.Error().Err(err).Str("run_id", run.ID).Msg("Failed to finalize sync run")
		metrics.RecordSyncError("run_finalize")
		watermark = time.Time{}
	}
	if !watermark.IsZero() {
		m.setWatermark(watermark)
		metrics.SetSyncWatermark(watermark)
	}

	if m.auditor != nil {
		m.auditor.LogSyncRun(ctx, run)
	}

	duration := time.Since(start)
	metrics.RecordSyncRun(string(run.Status), duration, run.Counts.Fetched)
	metrics.AddEventOutcomes("created", run.Counts.Created)
	metrics.AddEventOutcomes("duplicate", run.Counts.Duplicate)
	metrics.AddEventOutcomes("unmapped", run.Counts.Unmapped)
	metrics.AddEventOutcomes("failed", run.Counts.Failed)

	event := logging.Info()
	if run.Status != models.RunStatusSucceeded {
		event = logging.Warn()
	}
	event.
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Str("trigger", run.Trigger).
		Dur("duration", duration).
		Int("fetched", run.Counts.Fetched).
		Int("created", run.Counts.Created).
		Int("duplicate", run.Counts.Duplicate).
		Int("unmapped", run.Counts.Unmapped).
		Int("failed", run.Counts.Failed).
		Str("error", run.Error).
		Msg("Sync run completed")

	run.State = models.RunStateIdle
	m.setState(models.RunStateIdle)
	m.broadcast("sync_completed", ProgressFrame{
		RunID:   run.ID,
		State:   run.State,
		Status:  run.Status,
		Trigger: run.Trigger,
		Counts:  run.Counts,
	})
}

// nextWindow computes [watermark - overlap, now]. Before the first
// successful run the window covers today from midnight in the source
// timezone.
func (m *Manager) nextWindow(ctx context.Context, now time.Time) models.Window {
	if wm, ok := m.loadWatermark(ctx); ok {
		return models.Window{Start: wm.Add(-m.cfg.Sync.Overlap()), End: now}
	}

	local := now.In(m.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
	return models.Window{Start: midnight, End: now}
}

// transition advances the state machine, logging and broadcasting the step.
func (m *Manager) transition(run *models.SyncRun, state models.RunState) {
	run.State = state
	m.setState(state)

	logging.Debug().
		Str("run_id", run.ID).
		Str("state", string(state)).
		Msg("Sync state transition")

	m.broadcast("sync_state", ProgressFrame{
		RunID:   run.ID,
		State:   state,
		Trigger: run.Trigger,
		Counts:  run.Counts,
	})
}

// recordEventFailure accounts one per-event failure and audits the skip.
func (m *Manager) recordEventFailure(run *models.SyncRun, punch models.RawPunch, reason, kind string) {
	run.Counts.Failed++
	run.Failures = append(run.Failures, models.EventFailure{
		SourceWorkerCode: punch.SourceWorkerCode,
		Timestamp:        punch.Timestamp,
		Reason:           reason,
	})
	m.auditPunchSkipped(run.ID, punch, kind)

	logging.Warn().
		Str("run_id", run.ID).
		Str("source_worker_code", punch.SourceWorkerCode).
		Time("timestamp", punch.Timestamp).
		Str("reason", reason).
		Msg("Punch skipped")
}

func (m *Manager) auditPunchSkipped(runID string, punch models.RawPunch, kind string) {
	if m.auditor == nil {
		return
	}
	m.auditor.LogPunchSkipped(runID, punch.SourceWorkerCode, punch.Timestamp.Format(time.RFC3339), kind)
}

// classifyRunError buckets an aborting error for the sync_errors counter.
func classifyRunError(err error) string {
	switch {
	case errors.Is(err, source.ErrSourceAuth):
		return "source_auth"
	case errors.Is(err, source.ErrSourceUnreachable):
		return "source_unreachable"
	case errors.Is(err, source.ErrSourceMalformed):
		return "source_malformed"
	case errors.Is(err, database.ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}

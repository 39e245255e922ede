// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package scheduler translates the configured sync frequency into a single
// recurring trigger. Sub-minute frequencies run on a one-minute internal
// period; the orchestrator's overlapping fetch window catches up on anything
// that accumulated between ticks. The scheduler never runs the pipeline
// itself: each tick is forwarded to the sync manager's pending gate, which
// serializes runs and absorbs bursts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/models"
)

// Target receives trigger requests. EnqueueRun returns false when the
// pending gate is already full and the trigger must be dropped.
type Target interface {
	EnqueueRun(kind string) bool
}

// TriggerPeriod maps a configured frequency in seconds to the internal
// trigger period. Frequencies are clamped into the supported range,
// sub-minute values bucket to one minute, and coarser values round down
// to whole minutes.
func TriggerPeriod(frequencySeconds int) time.Duration {
	if frequencySeconds < config.MinFrequencySeconds {
		frequencySeconds = config.MinFrequencySeconds
	}
	if frequencySeconds > config.MaxFrequencySeconds {
		frequencySeconds = config.MaxFrequencySeconds
	}
	if frequencySeconds < 60 {
		return time.Minute
	}
	return time.Duration(frequencySeconds/60) * time.Minute
}

// Scheduler owns the recurring sync trigger. Configuration changes replace
// the ticker atomically; disabling suppresses firing without discarding the
// configured period.
type Scheduler struct {
	target Target

	mu      sync.Mutex
	period  time.Duration
	enabled bool

	reload chan struct{}
}

// New creates a scheduler firing at the period derived from
// frequencySeconds. It does not start ticking until Serve runs.
func New(target Target, frequencySeconds int, enabled bool) *Scheduler {
	return &Scheduler{
		target:  target,
		period:  TriggerPeriod(frequencySeconds),
		enabled: enabled,
		reload:  make(chan struct{}, 1),
	}
}

// Apply installs a new frequency and enabled flag. A changed period wakes
// the serve loop, which resets its ticker before the next tick can fire, so
// old and new cadences never overlap. Re-enabling resumes at the configured
// cadence without waiting for another Apply.
func (s *Scheduler) Apply(frequencySeconds int, enabled bool) {
	period := TriggerPeriod(frequencySeconds)

	s.mu.Lock()
	changed := period != s.period
	s.period = period
	s.enabled = enabled
	s.mu.Unlock()

	if !changed {
		return
	}

	metrics.SetSchedulerFrequency(int(period.Seconds()))
	logging.Info().Dur("period", period).Bool("enabled", enabled).Msg("Sync schedule updated")

	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// Period returns the current trigger period.
func (s *Scheduler) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// Enabled reports whether triggers currently fire.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Serve implements the suture.Service interface. It runs the ticker loop
// until the context is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	period := s.period
	enabled := s.enabled
	s.mu.Unlock()

	metrics.SetSchedulerFrequency(int(period.Seconds()))
	logging.Info().Dur("period", period).Bool("enabled", enabled).Msg("Scheduler starting")

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Scheduler shutting down")
			return ctx.Err()

		case <-s.reload:
			s.mu.Lock()
			next := s.period
			s.mu.Unlock()
			if next != period {
				ticker.Reset(next)
				period = next
			}

		case <-ticker.C:
			s.fire()
		}
	}
}

// fire forwards one trigger to the target unless scheduling is disabled.
// A full pending gate drops the trigger with a logged, counted skip.
func (s *Scheduler) fire() {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()

	if !enabled {
		logging.Debug().Msg("Scheduler disabled, trigger suppressed")
		return
	}

	if !s.target.EnqueueRun(models.TriggerScheduled) {
		logging.Info().Msg("Sync run in flight and one already pending, skipping scheduled trigger")
		metrics.RecordSchedulerSkip()
	}
}

// String returns the service name for supervision logging.
func (s *Scheduler) String() string {
	return "scheduler"
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/punchsync/internal/classify"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
)

// Preview runs the read-only half of the pipeline over today's window
// (midnight in the source timezone until now): fetch, classify, resolve.
// Nothing is persisted and the watermark does not move, so operators can
// inspect what a run would produce before triggering one.
func (m *Manager) Preview(ctx context.Context) ([]models.ResolvedEvent, error) {
	now := time.Now()
	local := now.In(m.loc)
	window := models.Window{
		Start: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc),
		End:   now,
	}

	punches, err := m.fetchWithReauth(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	events := classify.Classify(punches, m.loc)
	resolved := make([]models.ResolvedEvent, 0, len(events))
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, rerr := m.resolver.Resolve(ctx, ev)
		if rerr != nil {
			// Preview is diagnostic; carry the event through unmapped
			// rather than dropping it from the view.
			logging.Warn().
				Err(rerr).
				Str("source_worker_code", ev.SourceWorkerCode).
				Msg("Preview resolve failed")
			res = models.ResolvedEvent{ClassifiedEvent: ev}
		}
		resolved = append(resolved, res)
	}

	logging.Debug().
		Int("punches", len(punches)).
		Int("events", len(resolved)).
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Msg("Preview assembled")

	return resolved, nil
}

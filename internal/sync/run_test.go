// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
)

func TestRunFivePunchPattern(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 2),
		punchAt("1017", 12, 0),
		punchAt("1017", 12, 45),
		punchAt("1017", 17, 30),
		punchAt("1017", 18, 1),
	}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	run := m.execute(context.Background(), models.TriggerManual)

	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("status = %q (error %q), want succeeded", run.Status, run.Error)
	}
	if run.Counts.Fetched != 5 || run.Counts.Created != 5 {
		t.Errorf("counts = %+v, want 5 fetched and 5 created", run.Counts)
	}

	want := []models.Direction{
		models.DirectionIn, models.DirectionOut,
		models.DirectionIn, models.DirectionOut,
		models.DirectionOut,
	}
	got := store.directionsFor("worker-17")
	if len(got) != len(want) {
		t.Fatalf("persisted %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("direction[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunAdvancesWatermarkAtomically(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{punchAt("1017", 9, 0)}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	run := m.execute(context.Background(), models.TriggerScheduled)

	wm, ok := store.storedWatermark()
	if !ok {
		t.Fatal("watermark not stored after successful run")
	}
	if !wm.Equal(run.Window.End) {
		t.Errorf("watermark = %v, want window end %v", wm, run.Window.End)
	}

	completed, ok := store.lastCompleted()
	if !ok {
		t.Fatal("run row was not finalized")
	}
	if completed.ID != run.ID || completed.Status != models.RunStatusSucceeded {
		t.Errorf("finalized run = %s/%s, want %s/succeeded", completed.ID, completed.Status, run.ID)
	}
}

func TestRunAccountingInvariant(t *testing.T) {
	future := punchAt("2001", 10, 0)
	future.Timestamp = time.Now().Add(30 * time.Minute)
	stale := punchAt("2002", 10, 0)
	stale.Timestamp = time.Now().AddDate(0, 0, -120)

	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 0),  // created
		punchAt("1018", 8, 5),  // created
		punchAt("9999", 8, 10), // unmapped
		future,                 // failed: future timestamp
		stale,                  // failed: too old
		punchAt("3001", 8, 15), // failed: row insert error
	}}
	store := newFakeStore()
	store.persistErrFor = map[string]error{"3001": errors.New("constraint violation")}
	resolver := &fakeResolver{mapping: map[string]string{
		"1017": "worker-17",
		"1018": "worker-18",
		"2001": "worker-21",
		"2002": "worker-22",
		"3001": "worker-31",
	}}
	m := newTestManager(src, store, resolver)

	run := m.execute(context.Background(), models.TriggerManual)

	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("status = %q (error %q), want succeeded despite per-event failures", run.Status, run.Error)
	}

	c := run.Counts
	if sum := c.Created + c.Duplicate + c.Unmapped + c.Failed; sum != c.Fetched {
		t.Errorf("accounting broken: created %d + duplicate %d + unmapped %d + failed %d != fetched %d",
			c.Created, c.Duplicate, c.Unmapped, c.Failed, c.Fetched)
	}
	if c.Created != 2 || c.Unmapped != 1 || c.Failed != 3 {
		t.Errorf("counts = %+v, want 2 created, 1 unmapped, 3 failed", c)
	}
	if len(run.Failures) != 3 {
		t.Errorf("failures = %d, want 3 structured reasons", len(run.Failures))
	}
}

func TestRunResolvesEachCodeOnce(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 0),
		punchAt("1017", 12, 0),
		punchAt("1017", 17, 0),
		punchAt("9999", 9, 0),
		punchAt("9999", 18, 0),
	}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	run := m.execute(context.Background(), models.TriggerManual)

	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("status = %q (error %q), want succeeded", run.Status, run.Error)
	}
	if got := resolver.resolveCalls(); got != 2 {
		t.Errorf("resolver calls = %d, want one lookup per distinct code", got)
	}
	if run.Counts.Resolved != 3 || run.Counts.Created != 3 || run.Counts.Unmapped != 2 {
		t.Errorf("counts = %+v, want 3 resolved/created and 2 unmapped through the memo", run.Counts)
	}
}

func TestRunResolverErrorNotMemoized(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("5001", 8, 0),
		punchAt("5001", 17, 0),
	}}
	resolver := &fakeResolver{errFor: map[string]error{"5001": errors.New("directory down")}}
	m := newTestManager(src, newFakeStore(), resolver)

	run := m.execute(context.Background(), models.TriggerManual)

	// Each event retries the lookup so a recovered store serves later
	// events of the same code.
	if got := resolver.resolveCalls(); got != 2 {
		t.Errorf("resolver calls = %d, want a retry per failing event", got)
	}
	if run.Counts.Failed != 2 {
		t.Errorf("failed = %d, want both events accounted", run.Counts.Failed)
	}
}

func TestRunDuplicateSecondPass(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 0),
		punchAt("1017", 17, 0),
	}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	first := m.execute(context.Background(), models.TriggerManual)
	if first.Counts.Created != 2 {
		t.Fatalf("first run created = %d, want 2", first.Counts.Created)
	}

	second := m.execute(context.Background(), models.TriggerManual)
	if second.Counts.Created != 0 || second.Counts.Duplicate != 2 {
		t.Errorf("second run counts = %+v, want 0 created and 2 duplicate", second.Counts)
	}
	if store.createdCount() != 2 {
		t.Errorf("store holds %d records after replay, want 2", store.createdCount())
	}
}

func TestRunReauthenticatesExactlyOnce(t *testing.T) {
	src := &fakeSource{
		punches:   []models.RawPunch{punchAt("1017", 8, 0)},
		fetchErrs: []error{source.ErrSourceAuth, nil},
	}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := NewManager(testConfig(), src, resolver, store, nil, fakeSealer{})

	run := m.execute(context.Background(), models.TriggerScheduled)

	if run.Status != models.RunStatusSucceeded {
		t.Fatalf("status = %q (error %q), want succeeded after re-auth", run.Status, run.Error)
	}
	fetches, registers := src.calls()
	if fetches != 2 || registers != 1 {
		t.Errorf("fetches = %d, registers = %d, want 2 and 1", fetches, registers)
	}
	if got := store.storedToken(); got != "sealed(token-for-sync-svc)" {
		t.Errorf("stored token = %q, want sealed refreshed token", got)
	}
}

func TestRunAbortsWhenReauthFails(t *testing.T) {
	src := &fakeSource{
		fetchErrs:   []error{source.ErrSourceAuth},
		registerErr: source.ErrSourceAuth,
	}
	store := newFakeStore()
	m := newTestManager(src, store, &fakeResolver{})

	run := m.execute(context.Background(), models.TriggerScheduled)

	if run.Status != models.RunStatusFailed {
		t.Fatalf("status = %q, want failed", run.Status)
	}
	_, registers := src.calls()
	if registers != 1 {
		t.Errorf("registers = %d, want exactly one re-auth attempt", registers)
	}
	if _, ok := store.storedWatermark(); ok {
		t.Error("watermark moved on a failed run")
	}
}

func TestRunKeepsWatermarkOnSourceFailure(t *testing.T) {
	previous := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	store := newFakeStore()
	store.watermark = previous
	store.hasWatermark = true

	src := &fakeSource{fetchErrs: []error{source.ErrSourceUnreachable}}
	m := newTestManager(src, store, &fakeResolver{})

	run := m.execute(context.Background(), models.TriggerScheduled)

	if run.Status != models.RunStatusFailed {
		t.Fatalf("status = %q, want failed", run.Status)
	}
	wm, _ := store.storedWatermark()
	if !wm.Equal(previous) {
		t.Errorf("watermark = %v, want unchanged %v", wm, previous)
	}

	// The retry covers the original window: next run starts below the old
	// watermark, not after the failed window's end.
	next := m.execute(context.Background(), models.TriggerScheduled)
	wantStart := previous.Add(-testConfig().Sync.Overlap())
	if !next.Window.Start.Equal(wantStart) {
		t.Errorf("retry window start = %v, want %v", next.Window.Start, wantStart)
	}
}

func TestRunCancellationKeepsPartialWrites(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 0),
		punchAt("1017", 12, 0),
		punchAt("1017", 13, 0),
		punchAt("1017", 18, 0),
	}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	ctx, cancel := context.WithCancel(context.Background())
	store.afterCreate = func(created int) {
		if created == 2 {
			cancel()
		}
	}

	run := m.execute(ctx, models.TriggerManual)

	if run.Status != models.RunStatusCanceled {
		t.Fatalf("status = %q, want canceled", run.Status)
	}
	if store.createdCount() != 2 {
		t.Errorf("store holds %d records, want the 2 written before cancellation", store.createdCount())
	}
	if _, ok := store.storedWatermark(); ok {
		t.Error("watermark moved on a canceled run")
	}

	completed, ok := store.lastCompleted()
	if !ok {
		t.Fatal("canceled run was not finalized")
	}
	if completed.Status != models.RunStatusCanceled {
		t.Errorf("finalized status = %q, want canceled", completed.Status)
	}
}

func TestRunBroadcastsStateTransitions(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{punchAt("1017", 8, 0)}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	sink := &fakeSink{}
	m.SetProgressSink(sink)

	m.execute(context.Background(), models.TriggerManual)

	want := []models.RunState{
		models.RunStateFetching,
		models.RunStateClassifying,
		models.RunStateResolving,
		models.RunStatePersisting,
		models.RunStateReporting,
	}
	got := sink.states()
	if len(got) != len(want) {
		t.Fatalf("broadcast %d state frames (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	done := sink.completions()
	if len(done) != 1 {
		t.Fatalf("completion frames = %d, want 1", len(done))
	}
	if done[0].Status != models.RunStatusSucceeded || done[0].State != models.RunStateIdle {
		t.Errorf("completion frame = %+v, want succeeded/idle", done[0])
	}
}

func TestRunReportingAlwaysExecutes(t *testing.T) {
	src := &fakeSource{fetchErrs: []error{source.ErrSourceUnreachable}}
	store := newFakeStore()
	m := newTestManager(src, store, &fakeResolver{})

	sink := &fakeSink{}
	m.SetProgressSink(sink)

	m.execute(context.Background(), models.TriggerScheduled)

	states := sink.states()
	if len(states) == 0 || states[len(states)-1] != models.RunStateReporting {
		t.Errorf("states = %v, want reporting as the final transition", states)
	}
	if _, ok := store.lastCompleted(); !ok {
		t.Error("failed run left no finalized row")
	}
}

func TestRunPublishesCreatedEvents(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{
		punchAt("1017", 8, 0),
		punchAt("1017", 17, 0),
	}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	pub := &fakePublisher{}
	m.SetEventPublisher(pub)

	// First run creates and publishes; the replay run is all duplicates
	// and must publish nothing.
	m.execute(context.Background(), models.TriggerManual)
	m.execute(context.Background(), models.TriggerManual)

	if got := pub.published(); got != 2 {
		t.Errorf("published = %d, want 2 (created records only)", got)
	}
}

func TestRunPublishErrorDoesNotFailRun(t *testing.T) {
	src := &fakeSource{punches: []models.RawPunch{punchAt("1017", 8, 0)}}
	store := newFakeStore()
	resolver := &fakeResolver{mapping: map[string]string{"1017": "worker-17"}}
	m := newTestManager(src, store, resolver)

	m.SetEventPublisher(&fakePublisher{err: errors.New("broker down")})

	run := m.execute(context.Background(), models.TriggerManual)
	if run.Status != models.RunStatusSucceeded {
		t.Errorf("status = %q, want succeeded despite publish failure", run.Status)
	}
}

func TestFirstRunWindowStartsAtMidnight(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(src, newFakeStore(), &fakeResolver{})

	run := m.execute(context.Background(), models.TriggerScheduled)

	start := run.Window.Start.In(time.UTC)
	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		t.Errorf("first window start = %v, want midnight in the source timezone", start)
	}
	if !run.Window.End.After(run.Window.Start) {
		t.Errorf("window = %+v, want end after start", run.Window)
	}
}

func TestWindowAppliesOverlapBelowWatermark(t *testing.T) {
	previous := time.Now().Add(-30 * time.Minute).Truncate(time.Second)
	store := newFakeStore()
	store.watermark = previous
	store.hasWatermark = true

	src := &fakeSource{}
	m := newTestManager(src, store, &fakeResolver{})

	m.execute(context.Background(), models.TriggerScheduled)

	got := src.lastWindow()
	want := previous.Add(-testConfig().Sync.Overlap())
	if !got.Start.Equal(want) {
		t.Errorf("window start = %v, want watermark minus overlap %v", got.Start, want)
	}
}

func TestClassifyRunError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", source.ErrSourceAuth, "source_auth"},
		{"unreachable", source.ErrSourceUnreachable, "source_unreachable"},
		{"malformed", source.ErrSourceMalformed, "source_malformed"},
		{"wrapped", errors.Join(errors.New("fetch"), source.ErrSourceUnreachable), "source_unreachable"},
		{"other", errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRunError(tt.err); got != tt.want {
				t.Errorf("classifyRunError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

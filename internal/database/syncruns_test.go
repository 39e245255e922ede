// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/punchsync/internal/models"
)

func TestSyncRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	run := &models.SyncRun{
		Window: models.Window{
			Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		},
		Status:    models.RunStatusFailed, // placeholder until completion
		Trigger:   "manual",
		StartedAt: time.Date(2026, 3, 2, 12, 0, 1, 0, time.UTC),
	}

	if err := db.InsertSyncRun(ctx, run); err != nil {
		t.Fatalf("InsertSyncRun() failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run ID not assigned")
	}

	run.Status = models.RunStatusSucceeded
	run.Counts = models.RunCounts{Fetched: 10, Classified: 10, Resolved: 9, Created: 7, Duplicate: 2, Unmapped: 1}
	run.CompletedAt = run.StartedAt.Add(3 * time.Second)
	if err := db.CompleteRun(ctx, run, time.Time{}); err != nil {
		t.Fatalf("CompleteRun() failed: %v", err)
	}

	got, err := db.GetLastRun(ctx)
	if err != nil {
		t.Fatalf("GetLastRun() failed: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("GetLastRun().ID = %s, want %s", got.ID, run.ID)
	}
	if got.Status != models.RunStatusSucceeded {
		t.Errorf("Status = %s, want succeeded", got.Status)
	}
	if got.Counts.Created != 7 || got.Counts.Duplicate != 2 || got.Counts.Unmapped != 1 {
		t.Errorf("Counts = %+v, want created=7 duplicate=2 unmapped=1", got.Counts)
	}
	if got.Trigger != "manual" {
		t.Errorf("Trigger = %q, want manual", got.Trigger)
	}
	if got.CompletedAt.IsZero() {
		t.Error("CompletedAt not stored")
	}
}

func TestGetLastRunEmpty(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetLastRun(context.Background()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetLastRun() on empty = %v, want ErrRunNotFound", err)
	}
}

func TestCompleteMissingRun(t *testing.T) {
	db := setupTestDB(t)

	run := &models.SyncRun{ID: "00000000-0000-0000-0000-000000000001", Status: models.RunStatusFailed}
	if err := db.CompleteRun(context.Background(), run, time.Time{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("CompleteRun(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &models.SyncRun{
			Window:    models.Window{Start: base, End: base.Add(time.Hour)},
			Status:    models.RunStatusSucceeded,
			Trigger:   "scheduled",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.InsertSyncRun(ctx, run); err != nil {
			t.Fatalf("InsertSyncRun(%d) failed: %v", i, err)
		}
	}

	runs, err := db.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	// Newest first.
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("runs not ordered newest first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
}

func TestWatermarkRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// No watermark yet.
	_, ok, err := db.GetWatermark(ctx)
	if err != nil {
		t.Fatalf("GetWatermark() failed: %v", err)
	}
	if ok {
		t.Error("fresh database reported a watermark")
	}

	wm := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	if err := db.SetWatermark(ctx, wm); err != nil {
		t.Fatalf("SetWatermark() failed: %v", err)
	}

	got, ok, err := db.GetWatermark(ctx)
	if err != nil {
		t.Fatalf("GetWatermark() after set failed: %v", err)
	}
	if !ok {
		t.Fatal("watermark not found after set")
	}
	if !got.Equal(wm) {
		t.Errorf("watermark = %v, want %v", got, wm)
	}

	// Overwrite advances it.
	wm2 := wm.Add(time.Hour)
	if err := db.SetWatermark(ctx, wm2); err != nil {
		t.Fatalf("second SetWatermark() failed: %v", err)
	}
	got2, _, _ := db.GetWatermark(ctx)
	if !got2.Equal(wm2) {
		t.Errorf("watermark after overwrite = %v, want %v", got2, wm2)
	}
}

func TestSourceTokenRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetSourceToken(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("GetSourceToken() on empty = %v, want ErrNoCredentials", err)
	}

	has, err := db.HasSourceToken(ctx)
	if err != nil || has {
		t.Errorf("HasSourceToken() on empty = %v, %v; want false, nil", has, err)
	}

	if err := db.SaveSourceToken(ctx, "sealed-v1"); err != nil {
		t.Fatalf("SaveSourceToken() failed: %v", err)
	}
	got, err := db.GetSourceToken(ctx)
	if err != nil {
		t.Fatalf("GetSourceToken() failed: %v", err)
	}
	if got != "sealed-v1" {
		t.Errorf("token = %q, want sealed-v1", got)
	}

	// Rotation replaces the stored value.
	if err := db.SaveSourceToken(ctx, "sealed-v2"); err != nil {
		t.Fatalf("rotate SaveSourceToken() failed: %v", err)
	}
	got2, _ := db.GetSourceToken(ctx)
	if got2 != "sealed-v2" {
		t.Errorf("token after rotation = %q, want sealed-v2", got2)
	}

	if err := db.DeleteSourceToken(ctx); err != nil {
		t.Fatalf("DeleteSourceToken() failed: %v", err)
	}
	if _, err := db.GetSourceToken(ctx); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("GetSourceToken() after delete = %v, want ErrNoCredentials", err)
	}
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build !wal

package wal

import (
	"context"
	"testing"
)

func TestNoOpWAL(t *testing.T) {
	w, err := Open(&Config{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	ctx := context.Background()

	entryID, err := w.Write(ctx, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if entryID == "" {
		t.Error("Write() should return a placeholder entry ID")
	}

	if err := w.Confirm(ctx, entryID); err != nil {
		t.Errorf("Confirm() failed: %v", err)
	}

	pending, err := w.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("GetPending() = %d entries, want 0", len(pending))
	}

	if stats := w.Stats(); stats.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0", stats.PendingCount)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestNoOpWALSatisfiesInterface(t *testing.T) {
	var _ WAL = (*NoOpWAL)(nil)
}

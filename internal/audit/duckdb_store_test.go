// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build integration

package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory DuckDB: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func setupStore(t *testing.T) (*DuckDBStore, func()) {
	t.Helper()

	db, cleanup := setupTestDB(t)
	store := NewDuckDBStore(db)
	if err := store.CreateTable(context.Background()); err != nil {
		cleanup()
		t.Fatalf("CreateTable failed: %v", err)
	}
	return store, cleanup
}

func sampleEvent(id string) *Event {
	return &Event{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Type:      EventTypeAuthSuccess,
		Severity:  SeverityInfo,
		Outcome:   OutcomeSuccess,
		Actor: Actor{
			ID:         "admin",
			Type:       "user",
			Name:       "admin",
			Role:       "operator",
			AuthMethod: "jwt",
		},
		Target: &Target{
			ID:   "run-1",
			Type: "run",
		},
		Source: Source{
			IPAddress: "192.168.1.100",
			UserAgent: "curl/8.0",
		},
		Action:      "authenticate",
		Description: "Operator authenticated successfully",
		Metadata:    json.RawMessage(`{"method":"password"}`),
		RunID:       "run-1",
		RequestID:   "req-xyz",
	}
}

func TestDuckDBStore_CreateTable(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDuckDBStore(db)
	ctx := context.Background()

	if err := store.CreateTable(ctx); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	// Idempotent on a second pass
	if err := store.CreateTable(ctx); err != nil {
		t.Fatalf("CreateTable second pass failed: %v", err)
	}

	var tableName string
	err := db.QueryRowContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_name = 'audit_events'").Scan(&tableName)
	if err != nil {
		t.Fatalf("Table audit_events does not exist: %v", err)
	}
}

func TestDuckDBStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	event := sampleEvent("event-1")

	if err := store.Save(ctx, event); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "event-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Type != EventTypeAuthSuccess || got.Severity != SeverityInfo || got.Outcome != OutcomeSuccess {
		t.Errorf("classification fields = %q/%q/%q", got.Type, got.Severity, got.Outcome)
	}
	if got.Actor.ID != "admin" || got.Actor.Role != "operator" {
		t.Errorf("actor = %+v", got.Actor)
	}
	if got.Target == nil || got.Target.ID != "run-1" {
		t.Errorf("target = %+v", got.Target)
	}
	if got.Source.IPAddress != "192.168.1.100" {
		t.Errorf("source = %+v", got.Source)
	}
	if got.RunID != "run-1" || got.RequestID != "req-xyz" {
		t.Errorf("correlation = %q/%q", got.RunID, got.RequestID)
	}
	var meta map[string]string
	if err := json.Unmarshal(got.Metadata, &meta); err != nil || meta["method"] != "password" {
		t.Errorf("metadata = %s (err %v)", got.Metadata, err)
	}
}

func TestDuckDBStore_GetMissing(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	if _, err := store.Get(context.Background(), "no-such-event"); err == nil {
		t.Error("expected error for missing event")
	}
}

func TestDuckDBStore_SaveNil(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	if err := store.Save(context.Background(), nil); err == nil {
		t.Error("expected error for nil event")
	}
}

func TestDuckDBStore_QueryFilters(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	events := []*Event{
		sampleEvent("e1"),
		sampleEvent("e2"),
		sampleEvent("e3"),
	}
	events[0].Timestamp = base
	events[1].Timestamp = base.Add(time.Hour)
	events[1].Type = EventTypeSyncFailed
	events[1].Severity = SeverityError
	events[1].Outcome = OutcomeFailure
	events[1].RunID = "run-2"
	events[2].Timestamp = base.Add(2 * time.Hour)
	events[2].Actor.ID = "system"
	events[2].Description = "Maintenance operation reclassify"

	for _, e := range events {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		filter  QueryFilter
		wantIDs []string
	}{
		{"by type", QueryFilter{Types: []EventType{EventTypeSyncFailed}}, []string{"e2"}},
		{"by severity", QueryFilter{Severities: []Severity{SeverityError}}, []string{"e2"}},
		{"by outcome", QueryFilter{Outcomes: []Outcome{OutcomeFailure}}, []string{"e2"}},
		{"by actor", QueryFilter{ActorID: "system"}, []string{"e3"}},
		{"by run", QueryFilter{RunID: "run-2"}, []string{"e2"}},
		{"by request", QueryFilter{RequestID: "req-xyz"}, []string{"e1", "e2", "e3"}},
		{"by search text", QueryFilter{SearchText: "reclassify"}, []string{"e3"}},
		{"by time range", QueryFilter{StartTime: &events[1].Timestamp, EndTime: &events[1].Timestamp}, []string{"e2"}},
		{"limit", QueryFilter{Limit: 2, OrderBy: "timestamp", OrderDesc: true}, []string{"e3", "e2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.wantIDs))
			}
			seen := make(map[string]bool)
			for _, e := range got {
				seen[e.ID] = true
			}
			for _, id := range tt.wantIDs {
				if !seen[id] {
					t.Errorf("missing event %s in %v", id, got)
				}
			}
		})
	}
}

func TestDuckDBStore_QueryOrder(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		e := sampleEvent(id)
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := store.Query(ctx, DefaultQueryFilter())
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != "e3" || got[2].ID != "e1" {
		t.Errorf("default order wrong: %v", eventIDs(got))
	}

	got, err = store.Query(ctx, QueryFilter{OrderBy: "timestamp", OrderDesc: false, Limit: 3})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != "e1" {
		t.Errorf("ascending order wrong: %v", eventIDs(got))
	}
}

func eventIDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func TestDuckDBStore_Count(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	for _, id := range []string{"e1", "e2"} {
		if err := store.Save(ctx, sampleEvent(id)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	count, err := store.Count(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDuckDBStore_Delete(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	old := sampleEvent("old")
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -120)
	fresh := sampleEvent("fresh")

	for _, e := range []*Event{old, fresh} {
		if err := store.Save(ctx, e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	deleted, err := store.Delete(ctx, time.Now().UTC().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Errorf("fresh event should survive: %v", err)
	}
	if _, err := store.Get(ctx, "old"); err == nil {
		t.Error("old event should be gone")
	}
}

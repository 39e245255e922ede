// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package events

import (
	"strings"
	"testing"

	"github.com/tomtom215/punchsync/internal/models"
)

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()
	event := NewAttendanceCreated("run-42", testRecord())

	data, err := s.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	got, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}

	if got.EventID != event.EventID {
		t.Errorf("EventID = %q, want %q", got.EventID, event.EventID)
	}
	if got.RunID != event.RunID {
		t.Errorf("RunID = %q, want %q", got.RunID, event.RunID)
	}
	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, event.Timestamp)
	}
	if got.Direction != models.DirectionIn {
		t.Errorf("Direction = %q, want IN", got.Direction)
	}
}

func TestSerializerMarshalNil(t *testing.T) {
	if _, err := NewSerializer().Marshal(nil); err == nil {
		t.Fatal("Marshal(nil) should fail")
	}
}

func TestSerializerMarshalInvalid(t *testing.T) {
	event := NewAttendanceCreated("run-42", testRecord())
	event.WorkerID = ""

	_, err := NewSerializer().Marshal(event)
	if err == nil {
		t.Fatal("Marshal() of invalid event should fail")
	}
	if !strings.Contains(err.Error(), "validate event") {
		t.Errorf("error = %v, want validation failure", err)
	}
}

func TestSerializerUnmarshalGarbage(t *testing.T) {
	if _, err := NewSerializer().Unmarshal([]byte("{not json")); err == nil {
		t.Fatal("Unmarshal() of garbage should fail")
	}
}

func TestSerializerUnmarshalInvalidEvent(t *testing.T) {
	// Well-formed JSON that fails event validation.
	_, err := NewSerializer().Unmarshal([]byte(`{"schema_version":1,"event_id":"e1"}`))
	if err == nil {
		t.Fatal("Unmarshal() of incomplete event should fail")
	}
	if !strings.Contains(err.Error(), "validate event") {
		t.Errorf("error = %v, want validation failure", err)
	}
}

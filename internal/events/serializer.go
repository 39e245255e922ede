// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer converts events to and from their wire form. Events are
// validated on both paths so malformed payloads are caught at the edge
// rather than inside a consumer.
type Serializer struct{}

// NewSerializer creates a Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal validates and serializes an event.
func (s *Serializer) Marshal(e *AttendanceCreated) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes and validates an event.
func (s *Serializer) Unmarshal(data []byte) (*AttendanceCreated, error) {
	var e AttendanceCreated
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &e, nil
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// errMockCrash is what a mockService returns while it still has configured
// failures left.
var errMockCrash = errors.New("mock service crash")

// mockService is a configurable suture.Service for exercising the tree.
// Configure it through the struct literal before handing it to a
// supervisor; only the counters are touched concurrently.
type mockService struct {
	name     string
	serveErr error // returned immediately on every Serve when set
	failN    int32 // Serve calls that crash before settling into run-until-cancel

	starts   atomic.Int32
	stops    atomic.Int32
	failures atomic.Int32
}

func (m *mockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	defer m.stops.Add(1)

	if m.serveErr != nil {
		return m.serveErr
	}
	if m.failN > 0 && m.failures.Add(1) <= m.failN {
		return errMockCrash
	}

	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) Starts() int32 { return m.starts.Load() }

func (m *mockService) String() string { return m.name }

// testLogger discards suture's event output so failing-service tests do not
// flood the test log.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond for up to a second before failing the test.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	for i := 0; i < 50; i++ {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal(msg)
}

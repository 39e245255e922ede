// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getCounterValue extracts the value from a Prometheus counter
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// getGaugeValue extracts the value from a Prometheus gauge
func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{
			name:      "successful SELECT query",
			operation: "SELECT",
			table:     "attendance_events",
			duration:  10 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "successful INSERT query",
			operation: "INSERT",
			table:     "workers",
			duration:  5 * time.Millisecond,
			err:       nil,
		},
		{
			name:      "failed query with short error",
			operation: "UPDATE",
			table:     "sync_state",
			duration:  100 * time.Millisecond,
			err:       errors.New("connection refused"),
		},
		{
			name:      "failed query with long error truncated to 50 chars",
			operation: "DELETE",
			table:     "attendance_events",
			duration:  50 * time.Millisecond,
			err:       errors.New(strings.Repeat("x", 120)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{"successful GET", "GET", "/api/v1/status", "200", 25 * time.Millisecond},
		{"successful POST trigger", "POST", "/api/v1/sync/trigger", "200", 150 * time.Millisecond},
		{"unauthorized", "GET", "/api/v1/status", "401", 5 * time.Millisecond},
		{"busy trigger", "POST", "/api/v1/sync/trigger", "409", 2 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc: got %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec: got %v, want %v", got, before)
	}
}

func TestRecordSyncRun(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		fetched int
	}{
		{"successful run", "succeeded", 120},
		{"failed run", "failed", 0},
		{"canceled run", "canceled", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues(tt.status))
			RecordSyncRun(tt.status, 5*time.Second, tt.fetched)
			after := testutil.ToFloat64(SyncRunsTotal.WithLabelValues(tt.status))
			if after != before+1 {
				t.Errorf("SyncRunsTotal[%s] = %v, want %v", tt.status, after, before+1)
			}
		})
	}
}

func TestRecordSyncRunSuccessTimestamp(t *testing.T) {
	RecordSyncRun("succeeded", time.Second, 10)
	ts := testutil.ToFloat64(SyncLastSuccess)
	if ts == 0 {
		t.Error("SyncLastSuccess not set after successful run")
	}
}

func TestAddEventOutcomes(t *testing.T) {
	before := testutil.ToFloat64(SyncEventsTotal.WithLabelValues("created"))
	AddEventOutcomes("created", 7)
	after := testutil.ToFloat64(SyncEventsTotal.WithLabelValues("created"))
	if after != before+7 {
		t.Errorf("created outcome count = %v, want %v", after, before+7)
	}

	// Zero and negative deltas are ignored.
	AddEventOutcomes("created", 0)
	AddEventOutcomes("created", -3)
	if got := testutil.ToFloat64(SyncEventsTotal.WithLabelValues("created")); got != after {
		t.Errorf("non-positive delta changed counter: %v", got)
	}
}

func TestSetSyncWatermark(t *testing.T) {
	wm := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	SetSyncWatermark(wm)
	if got := testutil.ToFloat64(SyncWatermark); got != float64(wm.Unix()) {
		t.Errorf("SyncWatermark = %v, want %v", got, wm.Unix())
	}
}

func TestSchedulerMetrics(t *testing.T) {
	RecordTrigger("scheduled")
	RecordTrigger("manual")
	RecordSchedulerSkip()
	SetSchedulerFrequency(300)
	if got := testutil.ToFloat64(SchedulerFrequency); got != 300 {
		t.Errorf("SchedulerFrequency = %v, want 300", got)
	}
}

func TestRecordSourceRequest(t *testing.T) {
	successBefore := testutil.ToFloat64(SourceRequestsTotal.WithLabelValues("api", "success"))
	failureBefore := testutil.ToFloat64(SourceRequestsTotal.WithLabelValues("api", "failure"))

	RecordSourceRequest("api", 50*time.Millisecond, nil)
	RecordSourceRequest("api", 50*time.Millisecond, errors.New("timeout"))

	if got := testutil.ToFloat64(SourceRequestsTotal.WithLabelValues("api", "success")); got != successBefore+1 {
		t.Errorf("success count = %v, want %v", got, successBefore+1)
	}
	if got := testutil.ToFloat64(SourceRequestsTotal.WithLabelValues("api", "failure")); got != failureBefore+1 {
		t.Errorf("failure count = %v, want %v", got, failureBefore+1)
	}
}

func TestRecordMaintenance(t *testing.T) {
	runsBefore := testutil.ToFloat64(MaintenanceRunsTotal.WithLabelValues("reclassify"))
	rowsBefore := testutil.ToFloat64(MaintenanceRowsAffected.WithLabelValues("reclassify"))

	RecordMaintenance("reclassify", 12)
	RecordMaintenance("reclassify", 0)

	if got := testutil.ToFloat64(MaintenanceRunsTotal.WithLabelValues("reclassify")); got != runsBefore+2 {
		t.Errorf("runs = %v, want %v", got, runsBefore+2)
	}
	if got := testutil.ToFloat64(MaintenanceRowsAffected.WithLabelValues("reclassify")); got != rowsBefore+12 {
		t.Errorf("rows = %v, want %v", got, rowsBefore+12)
	}
}

func TestRecordEventPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(EventsPublished)
	failBefore := testutil.ToFloat64(EventsPublishFailures)

	RecordEventPublish(nil)
	RecordEventPublish(errors.New("nats: connection closed"))

	if got := testutil.ToFloat64(EventsPublished); got != okBefore+1 {
		t.Errorf("published = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(EventsPublishFailures); got != failBefore+1 {
		t.Errorf("failures = %v, want %v", got, failBefore+1)
	}
}

func TestWALCounters(t *testing.T) {
	writesBefore := getCounterValue(WALWrites)
	confirmsBefore := getCounterValue(WALConfirms)
	retriesBefore := getCounterValue(WALRetries)

	RecordWALWrite()
	RecordWALConfirm()
	RecordWALRetry()

	if got := getCounterValue(WALWrites); got != writesBefore+1 {
		t.Errorf("writes = %v, want %v", got, writesBefore+1)
	}
	if got := getCounterValue(WALConfirms); got != confirmsBefore+1 {
		t.Errorf("confirms = %v, want %v", got, confirmsBefore+1)
	}
	if got := getCounterValue(WALRetries); got != retriesBefore+1 {
		t.Errorf("retries = %v, want %v", got, retriesBefore+1)
	}
}

func TestSetWALPending(t *testing.T) {
	SetWALPending(42)
	if got := getGaugeValue(WALEntriesPending); got != 42 {
		t.Errorf("pending = %v, want 42", got)
	}
	SetWALPending(0)
	if got := getGaugeValue(WALEntriesPending); got != 0 {
		t.Errorf("pending after reset = %v, want 0", got)
	}
}

func TestRecordWALReplay(t *testing.T) {
	before := getCounterValue(WALEntriesReplayed)
	RecordWALReplay(5)
	RecordWALReplay(0)
	if got := getCounterValue(WALEntriesReplayed); got != before+5 {
		t.Errorf("replayed = %v, want %v", got, before+5)
	}
}

func TestRecordSourceReauth(t *testing.T) {
	before := getCounterValue(SourceReauthsTotal)
	RecordSourceReauth()
	if got := getCounterValue(SourceReauthsTotal); got != before+1 {
		t.Errorf("reauths = %v, want %v", got, before+1)
	}
}

func TestBreakerMetrics(t *testing.T) {
	SetBreakerState("source", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("source")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
	RecordBreakerTransition("source", "closed", "open")
}

func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordAPIRequest("GET", "/api/v1/status", "200", time.Millisecond)
				AddEventOutcomes("duplicate", 1)
				TrackActiveRequest(true)
				TrackActiveRequest(false)
			}
		}()
	}
	wg.Wait()
}

func TestMetricGathering(t *testing.T) {
	RecordDBQuery("SELECT", "attendance_events", time.Millisecond, nil)
	RecordAPIRequest("GET", "/api/v1/health", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

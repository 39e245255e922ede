// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func sampleMetric(path string, durationMS int64) *RequestMetrics {
	return &RequestMetrics{
		Path:       path,
		Method:     http.MethodGet,
		DurationMS: durationMS,
		StatusCode: http.StatusOK,
		Timestamp:  time.Now(),
	}
}

func TestNewPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	if pm == nil {
		t.Fatal("NewPerformanceMonitor returned nil")
	}
	if cap(pm.samples) != 100 {
		t.Errorf("Expected ring capacity 100, got %d", cap(pm.samples))
	}
	if len(pm.samples) != 0 {
		t.Errorf("Expected empty ring, got %d samples", len(pm.samples))
	}
}

func TestNewPerformanceMonitor_ClampsCapacity(t *testing.T) {
	pm := NewPerformanceMonitor(0)

	pm.RecordRequest(sampleMetric("/api/v1/status", 5))
	pm.RecordRequest(sampleMetric("/api/v1/status", 7))

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 1 {
		t.Fatalf("Expected a single-slot ring, got %d samples", len(recent))
	}
	if recent[0].DurationMS != 7 {
		t.Errorf("Expected the newest sample to survive, got duration %d", recent[0].DurationMS)
	}
}

func TestPerformanceMonitor_RecordRequest(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	pm.RecordRequest(sampleMetric("/api/v1/status", 12))
	pm.RecordRequest(sampleMetric("/api/v1/status", 18))

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(recent))
	}
	if recent[0].DurationMS != 12 || recent[1].DurationMS != 18 {
		t.Errorf("Expected samples [12,18], got [%d,%d]", recent[0].DurationMS, recent[1].DurationMS)
	}
}

func TestPerformanceMonitor_RecordRequest_EvictsOldest(t *testing.T) {
	pm := NewPerformanceMonitor(3)

	for i := int64(1); i <= 5; i++ {
		pm.RecordRequest(sampleMetric("/api/v1/status", i))
	}

	recent := pm.GetRecentMetrics(3)
	if len(recent) != 3 {
		t.Fatalf("Expected window of 3 samples, got %d", len(recent))
	}

	// The two oldest samples were overwritten
	if recent[0].DurationMS != 3 || recent[1].DurationMS != 4 || recent[2].DurationMS != 5 {
		t.Errorf("Expected window [3,4,5], got [%d,%d,%d]",
			recent[0].DurationMS, recent[1].DurationMS, recent[2].DurationMS)
	}
}

func TestPerformanceMonitor_GetStats(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	for _, d := range []int64{10, 20, 30, 40, 50} {
		pm.RecordRequest(sampleMetric("/api/v1/sync/preview", d))
	}
	pm.RecordRequest(sampleMetric("/api/v1/health", 1))

	stats := pm.GetStats()

	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 endpoints, got %d", len(stats))
	}

	// Busiest endpoint sorts first
	if stats[0].Path != "GET /api/v1/sync/preview" {
		t.Errorf("Expected preview endpoint first, got %s", stats[0].Path)
	}

	preview := stats[0]
	if preview.RequestCount != 5 {
		t.Errorf("Expected 5 requests, got %d", preview.RequestCount)
	}
	if preview.AvgDuration != 30 {
		t.Errorf("Expected avg 30, got %f", preview.AvgDuration)
	}
	if preview.MinDuration != 10 || preview.MaxDuration != 50 {
		t.Errorf("Expected min 10 max 50, got min %d max %d", preview.MinDuration, preview.MaxDuration)
	}
	if preview.P50Duration != 30 {
		t.Errorf("Expected p50 30, got %d", preview.P50Duration)
	}
}

func TestPerformanceMonitor_GetRecentMetrics(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	for i := int64(1); i <= 10; i++ {
		pm.RecordRequest(sampleMetric("/api/v1/status", i))
	}

	recent := pm.GetRecentMetrics(3)

	if len(recent) != 3 {
		t.Fatalf("Expected 3 recent metrics, got %d", len(recent))
	}
	if recent[0].DurationMS != 8 || recent[2].DurationMS != 10 {
		t.Errorf("Expected most recent [8,9,10], got [%d,%d,%d]",
			recent[0].DurationMS, recent[1].DurationMS, recent[2].DurationMS)
	}
}

func TestPerformanceMonitor_GetRecentMetrics_MoreThanAvailable(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	pm.RecordRequest(sampleMetric("/api/v1/status", 5))

	recent := pm.GetRecentMetrics(50)

	if len(recent) != 1 {
		t.Errorf("Expected 1 metric, got %d", len(recent))
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	handler := pm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("Expected middleware to record a sample")
	}
	if recent[0].Path != "/api/v1/status" {
		t.Errorf("Expected path /api/v1/status, got %s", recent[0].Path)
	}
	if recent[0].Method != http.MethodGet {
		t.Errorf("Expected method GET, got %s", recent[0].Method)
	}
	if recent[0].StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", recent[0].StatusCode)
	}
}

func TestPerformanceMonitor_Middleware_CapturesStatusCode(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	handler := pm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/trigger", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("Expected middleware to record a sample")
	}
	if recent[0].StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", recent[0].StatusCode)
	}
}

func TestStatusRecorder_WriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusServiceUnavailable)

	if sr.status != http.StatusServiceUnavailable {
		t.Errorf("Expected captured status 503, got %d", sr.status)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected underlying status 503, got %d", rec.Code)
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		data   []int64
		p      float64
		expect int64
	}{
		{"P50 of odd number of elements", []int64{10, 20, 30, 40, 50}, 0.50, 30},
		{"P95 of dataset", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.95, 9},
		{"P99 of dataset", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.99, 9},
		{"P0 (minimum)", []int64{10, 20, 30, 40, 50}, 0.0, 10},
		{"P100 (maximum)", []int64{10, 20, 30, 40, 50}, 1.0, 50},
		{"single element", []int64{42}, 0.5, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := percentile(tt.data, tt.p)
			if result != tt.expect {
				t.Errorf("Expected %d, got %d", tt.expect, result)
			}
		})
	}
}

func TestPercentile_EmptySlice(t *testing.T) {
	result := percentile([]int64{}, 0.5)
	if result != 0 {
		t.Errorf("Expected 0 for empty slice, got %d", result)
	}
}

func TestPerformanceMonitor_ConcurrentAccess(t *testing.T) {
	pm := NewPerformanceMonitor(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := int64(0); j < 50; j++ {
				pm.RecordRequest(sampleMetric("/api/v1/status", j))
			}
		}()
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				pm.GetStats()
				pm.GetRecentMetrics(10)
			}
		}()
	}

	wg.Wait()

	if got := len(pm.GetRecentMetrics(1000)); got != 500 {
		t.Errorf("Expected 500 samples, got %d", got)
	}
}

func BenchmarkPerformanceMonitor_RecordRequest(b *testing.B) {
	pm := NewPerformanceMonitor(1000)
	metric := sampleMetric("/api/v1/status", 10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pm.RecordRequest(metric)
	}
}

func BenchmarkPerformanceMonitor_GetStats(b *testing.B) {
	pm := NewPerformanceMonitor(1000)
	for i := int64(0); i < 1000; i++ {
		pm.RecordRequest(sampleMetric("/api/v1/status", i%100))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pm.GetStats()
	}
}

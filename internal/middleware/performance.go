// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/punchsync/internal/logging"
)

// slowRequestThresholdMS is the latency above which the monitor flags a
// request inline. Sync triggers run a whole fetch cycle synchronously and
// routinely exceed it, which is exactly what the log line is for.
const slowRequestThresholdMS = 1000

// RequestMetrics is one sampled request.
type RequestMetrics struct {
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	DurationMS int64     `json:"duration_ms"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// PerformanceMonitor keeps the last maxSamples requests in a ring buffer.
// Once the ring is full each new sample overwrites the oldest.
type PerformanceMonitor struct {
	mu      sync.RWMutex
	samples []RequestMetrics
	oldest  int
}

// EndpointStats contains aggregated statistics for an endpoint.
type EndpointStats struct {
	Path         string  `json:"path"`
	RequestCount int64   `json:"request_count"`
	AvgDuration  float64 `json:"avg_duration_ms"`
	P50Duration  int64   `json:"p50_duration_ms"`
	P95Duration  int64   `json:"p95_duration_ms"`
	P99Duration  int64   `json:"p99_duration_ms"`
	MinDuration  int64   `json:"min_duration_ms"`
	MaxDuration  int64   `json:"max_duration_ms"`
}

// NewPerformanceMonitor creates a monitor keeping at most maxSamples
// samples.
func NewPerformanceMonitor(maxSamples int) *PerformanceMonitor {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &PerformanceMonitor{
		samples: make([]RequestMetrics, 0, maxSamples),
	}
}

// RecordRequest adds a request sample, evicting the oldest once the ring
// is at capacity.
func (pm *PerformanceMonitor) RecordRequest(metric *RequestMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.samples) < cap(pm.samples) {
		pm.samples = append(pm.samples, *metric)
		return
	}
	pm.samples[pm.oldest] = *metric
	pm.oldest = (pm.oldest + 1) % len(pm.samples)
}

// GetStats returns aggregated statistics for all endpoints seen in the
// current window, busiest first. Percentiles are computed outside the
// lock, so recording never waits on the sort.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	byEndpoint := make(map[string][]int64)
	for i := range pm.samples {
		key := pm.samples[i].Method + " " + pm.samples[i].Path
		byEndpoint[key] = append(byEndpoint[key], pm.samples[i].DurationMS)
	}
	pm.mu.RUnlock()

	stats := make([]EndpointStats, 0, len(byEndpoint))
	for endpoint, durations := range byEndpoint {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		var sum int64
		for _, d := range durations {
			sum += d
		}

		stats = append(stats, EndpointStats{
			Path:         endpoint,
			RequestCount: int64(len(durations)),
			AvgDuration:  float64(sum) / float64(len(durations)),
			P50Duration:  percentile(durations, 0.50),
			P95Duration:  percentile(durations, 0.95),
			P99Duration:  percentile(durations, 0.99),
			MinDuration:  durations[0],
			MaxDuration:  durations[len(durations)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].RequestCount > stats[j].RequestCount
	})

	return stats
}

// GetRecentMetrics returns up to n samples, newest last.
func (pm *PerformanceMonitor) GetRecentMetrics(n int) []RequestMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	// Unroll the ring into insertion order.
	ordered := make([]RequestMetrics, 0, len(pm.samples))
	ordered = append(ordered, pm.samples[pm.oldest:]...)
	ordered = append(ordered, pm.samples[:pm.oldest]...)

	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[len(ordered)-n:]
}

// Middleware wraps a handler with latency sampling.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Milliseconds()

		pm.RecordRequest(&RequestMetrics{
			Path:       r.URL.Path,
			Method:     r.Method,
			DurationMS: duration,
			StatusCode: rec.status,
			Timestamp:  time.Now(),
		})

		if duration > slowRequestThresholdMS {
			// Ctx picks up the request ID stamped by the API middleware,
			// so the log line can be matched to the client's X-Request-ID.
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("duration_ms", duration).
				Msg("Slow request detected")
		}
	})
}

// percentile picks by nearest rank from an ascending slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

// statusRecorder captures the status code for the request sample.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

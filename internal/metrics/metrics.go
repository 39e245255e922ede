// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Sync run outcomes and event accounting
// - Source connector requests and circuit breaker state
// - Scheduler trigger dispatch
// - WebSocket connections

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Sync Run Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by terminal status",
		},
		[]string{"status"}, // "succeeded", "failed", "canceled"
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Total number of attendance events by persistence outcome",
		},
		[]string{"outcome"}, // "created", "duplicate", "skipped_unmapped", "failed"
	)

	SyncFetchBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_fetch_batch_size",
			Help:    "Number of raw punches fetched per sync run",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync run failures",
		},
		[]string{"error_type"}, // "source_unreachable", "source_auth", "source_malformed", "persistence", "other"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync run",
		},
	)

	SyncWatermark = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_watermark_timestamp",
			Help: "Unix timestamp of the current fetch watermark",
		},
	)

	// Scheduler Metrics
	SchedulerTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_triggers_total",
			Help: "Total number of sync triggers dispatched",
		},
		[]string{"kind"}, // "scheduled", "manual"
	)

	SchedulerSkippedTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_skipped_triggers_total",
			Help: "Total number of scheduled triggers dropped because a run was in flight and one was already pending",
		},
	)

	SchedulerFrequency = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_frequency_seconds",
			Help: "Currently configured sync frequency in seconds",
		},
	)

	// Source Connector Metrics
	SourceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of requests to the attendance source",
		},
		[]string{"mode", "result"}, // mode: "api", "device"; result: "success", "failure"
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_request_duration_seconds",
			Help:    "Duration of source requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	SourcePagesFetched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_pages_fetched",
			Help:    "Number of pages fetched per API sync run",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	SourceReauthsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_reauths_total",
			Help: "Total number of automatic token re-registrations after auth failures",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Maintenance Metrics
	MaintenanceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_runs_total",
			Help: "Total number of maintenance operations executed",
		},
		[]string{"operation"}, // "reclassify", "purge_duplicates"
	)

	MaintenanceRowsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_rows_affected_total",
			Help: "Total number of rows rewritten or deleted by maintenance operations",
		},
		[]string{"operation"},
	)

	// Event Publishing Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of attendance events published to the message bus",
		},
	)

	EventsPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_publish_failures_total",
			Help: "Total number of failed event publishes",
		},
	)

	WALEntriesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wal_entries_pending",
			Help: "Current number of unpublished entries in the write-ahead log",
		},
	)

	WALEntriesReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wal_entries_replayed_total",
			Help: "Total number of WAL entries replayed to the message bus",
		},
	)

	WALWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wal_writes_total",
			Help: "Total number of entries written to the write-ahead log",
		},
	)

	WALConfirms = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wal_confirms_total",
			Help: "Total number of WAL entries confirmed after a successful publish",
		},
	)

	WALRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wal_retries_total",
			Help: "Total number of WAL publish retry attempts",
		},
	)

	WALEntriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wal_entries_dropped_total",
			Help: "Total number of WAL entries dropped without a successful publish",
		},
		[]string{"reason"}, // "expired", "exhausted"
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncRun records a completed sync run with its terminal status
// ("succeeded", "failed", "canceled") and total fetched punch count.
func RecordSyncRun(status string, duration time.Duration, fetched int) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncRunDuration.Observe(duration.Seconds())
	SyncFetchBatchSize.Observe(float64(fetched))
	if status == "succeeded" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSyncError records a whole-run sync failure by taxonomy name.
func RecordSyncError(errorType string) {
	SyncErrors.WithLabelValues(errorType).Inc()
}

// AddEventOutcomes adds n events with the given persistence outcome.
func AddEventOutcomes(outcome string, n int) {
	if n <= 0 {
		return
	}
	SyncEventsTotal.WithLabelValues(outcome).Add(float64(n))
}

// SetSyncWatermark updates the watermark gauge.
func SetSyncWatermark(t time.Time) {
	SyncWatermark.Set(float64(t.Unix()))
}

// RecordTrigger records a dispatched sync trigger ("scheduled" or "manual").
func RecordTrigger(kind string) {
	SchedulerTriggersTotal.WithLabelValues(kind).Inc()
}

// RecordSchedulerSkip records a dropped scheduled trigger.
func RecordSchedulerSkip() {
	SchedulerSkippedTriggers.Inc()
}

// SetSchedulerFrequency updates the configured frequency gauge.
func SetSchedulerFrequency(seconds int) {
	SchedulerFrequency.Set(float64(seconds))
}

// RecordSourceRequest records one request against the attendance source.
func RecordSourceRequest(mode string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SourceRequestsTotal.WithLabelValues(mode, result).Inc()
	SourceRequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSourceReauth records one automatic token re-registration.
func RecordSourceReauth() {
	SourceReauthsTotal.Inc()
}

// SetBreakerState updates the circuit breaker state gauge.
func SetBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordMaintenance records a maintenance operation and its affected row count.
func RecordMaintenance(operation string, affected int) {
	MaintenanceRunsTotal.WithLabelValues(operation).Inc()
	if affected > 0 {
		MaintenanceRowsAffected.WithLabelValues(operation).Add(float64(affected))
	}
}

// RecordEventPublish records one event publish attempt.
func RecordEventPublish(err error) {
	if err != nil {
		EventsPublishFailures.Inc()
		return
	}
	EventsPublished.Inc()
}

// RecordWALReplay records n WAL entries replayed to the bus.
func RecordWALReplay(n int) {
	if n > 0 {
		WALEntriesReplayed.Add(float64(n))
	}
}

// SetWALPending updates the pending WAL entry gauge.
func SetWALPending(n int64) {
	WALEntriesPending.Set(float64(n))
}

// RecordWALWrite increments the WAL write counter.
func RecordWALWrite() {
	WALWrites.Inc()
}

// RecordWALConfirm increments the WAL confirm counter.
func RecordWALConfirm() {
	WALConfirms.Inc()
}

// RecordWALRetry increments the WAL retry counter.
func RecordWALRetry() {
	WALRetries.Inc()
}

// RecordWALDropped records an entry removed without a successful publish.
// Reason is "expired" or "exhausted".
func RecordWALDropped(reason string) {
	WALEntriesDropped.WithLabelValues(reason).Inc()
}

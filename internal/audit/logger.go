// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool `json:"enabled"`

	// LogLevel filters events by minimum severity.
	LogLevel Severity `json:"log_level"`

	// RetentionDays is how long to keep audit events.
	RetentionDays int `json:"retention_days"`

	// CleanupInterval is how often to run retention cleanup.
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size"`

	// LogToStdout also writes events to the application log.
	LogToStdout bool `json:"log_to_stdout"`

	// IncludeDebug includes debug-level events.
	IncludeDebug bool `json:"include_debug"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		LogLevel:        SeverityInfo,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
		LogToStdout:     false,
		IncludeDebug:    false,
	}
}

// Logger is the audit sink. Events are buffered and written asynchronously
// so a slow store never stalls a sync run or an HTTP handler.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewLogger creates a new audit logger.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// asyncWriter drains the event channel until Close, then flushes whatever
// is still queued before exiting.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

// writeEvent writes one event to the store, mirroring it to the
// application log when configured.
func (l *Logger) writeEvent(event *Event) {
	l.mu.RLock()
	config := l.config
	l.mu.RUnlock()

	if config.LogToStdout {
		l.logToStdout(event)
	}

	if l.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Msg("Failed to save audit event")
		}
	}
}

// logToStdout writes an event to the application log in JSON form.
func (l *Logger) logToStdout(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}
	logging.Info().RawJSON("event", data).Msg("Audit event")
}

// Log queues an event for asynchronous persistence. When the buffer is
// full the event is dropped rather than blocking the caller.
func (l *Logger) Log(event *Event) {
	l.mu.RLock()
	config := l.config
	l.mu.RUnlock()

	if !config.Enabled {
		return
	}

	if !l.shouldLog(event.Severity, config) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

// shouldLog applies the configured severity floor.
func (l *Logger) shouldLog(severity Severity, config *Config) bool {
	if severity == SeverityDebug && !config.IncludeDebug {
		return false
	}

	severityOrder := map[Severity]int{
		SeverityDebug:    0,
		SeverityInfo:     1,
		SeverityWarning:  2,
		SeverityError:    3,
		SeverityCritical: 4,
	}

	return severityOrder[severity] >= severityOrder[config.LogLevel]
}

// Close shuts down the logger gracefully, flushing buffered events.
func (l *Logger) Close() error {
	close(l.stopChan)
	l.wg.Wait()
	return nil
}

// Serve runs the retention cleanup loop until the context is canceled.
// It implements the supervised service contract.
func (l *Logger) Serve(ctx context.Context) error {
	l.mu.RLock()
	interval := l.config.CleanupInterval
	retention := l.config.RetentionDays
	l.mu.RUnlock()

	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.store == nil || retention <= 0 {
				continue
			}
			cutoff := time.Now().AddDate(0, 0, -retention)
			count, err := l.store.Delete(ctx, cutoff)
			if err != nil {
				logging.Error().Err(err).Msg("Audit cleanup error")
			} else if count > 0 {
				logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
			}
		}
	}
}

// String returns the service name for the supervisor.
func (l *Logger) String() string {
	return "audit-retention"
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// SetEnabled enables or disables audit logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Enabled = enabled
}

// Enabled returns whether audit logging is enabled.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Enabled
}

// Helper methods for common audit events

// LogAuthSuccess records a successful operator login.
func (l *Logger) LogAuthSuccess(ctx context.Context, username, role string, source Source) {
	l.Log(&Event{
		Type:     EventTypeAuthSuccess,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor: Actor{
			ID:         username,
			Type:       "user",
			Name:       username,
			Role:       role,
			AuthMethod: "jwt",
		},
		Source:      source,
		Action:      "authenticate",
		Description: "Operator authenticated successfully",
		RequestID:   getRequestID(ctx),
	})
}

// LogAuthFailure records a failed login attempt.
func (l *Logger) LogAuthFailure(ctx context.Context, username string, source Source, reason string) {
	l.Log(&Event{
		Type:     EventTypeAuthFailure,
		Severity: SeverityWarning,
		Outcome:  OutcomeFailure,
		Actor: Actor{
			ID:   username,
			Type: "user",
			Name: username,
		},
		Source:      source,
		Action:      "authenticate",
		Description: "Authentication failed: " + reason,
		Metadata:    mustJSON(map[string]string{"reason": reason}),
		RequestID:   getRequestID(ctx),
	})
}

// LogTokenRegistered records a source credential rotation.
func (l *Logger) LogTokenRegistered(ctx context.Context, actor Actor, source Source, sourceUser string) {
	l.Log(&Event{
		Type:     EventTypeTokenRegistered,
		Severity: SeverityWarning,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Target: &Target{
			ID:   sourceUser,
			Type: "credentials",
		},
		Action:      "register_token",
		Description: "Source API token registered for " + sourceUser,
		RequestID:   getRequestID(ctx),
	})
}

// LogTokenCleared records the removal of the stored source credential.
func (l *Logger) LogTokenCleared(ctx context.Context, actor Actor, source Source) {
	l.Log(&Event{
		Type:        EventTypeTokenCleared,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Source:      source,
		Action:      "clear_token",
		Description: "Stored source API token cleared",
		RequestID:   getRequestID(ctx),
	})
}

// LogSyncRun records the terminal disposition of a sync run.
func (l *Logger) LogSyncRun(ctx context.Context, run *models.SyncRun) {
	eventType := EventTypeSyncCompleted
	severity := SeverityInfo
	outcome := OutcomeSuccess

	switch run.Status {
	case models.RunStatusFailed:
		eventType = EventTypeSyncFailed
		severity = SeverityError
		outcome = OutcomeFailure
	case models.RunStatusCanceled:
		eventType = EventTypeSyncCanceled
		severity = SeverityWarning
		outcome = OutcomeUnknown
	}

	meta := map[string]interface{}{
		"trigger":      run.Trigger,
		"window_start": run.Window.Start,
		"window_end":   run.Window.End,
		"fetched":      run.Counts.Fetched,
		"created":      run.Counts.Created,
		"duplicate":    run.Counts.Duplicate,
		"unmapped":     run.Counts.Unmapped,
		"failed":       run.Counts.Failed,
	}
	if run.Error != "" {
		meta["error"] = run.Error
	}

	l.Log(&Event{
		Type:     eventType,
		Severity: severity,
		Outcome:  outcome,
		Actor:    SystemActor(),
		Target: &Target{
			ID:   run.ID,
			Type: "run",
		},
		Action:      "sync",
		Description: "Sync run " + string(run.Status),
		Metadata:    mustJSON(meta),
		RunID:       run.ID,
		RequestID:   getRequestID(ctx),
	})
}

// LogPunchSkipped records a punch that could not be persisted: unmapped
// worker code, sanity reject, or a per-row store failure.
func (l *Logger) LogPunchSkipped(runID, sourceWorkerCode, rawTimestamp, kind string) {
	l.Log(&Event{
		Type:     EventTypePunchSkipped,
		Severity: SeverityWarning,
		Outcome:  OutcomeFailure,
		Actor:    SystemActor(),
		Target: &Target{
			ID:   sourceWorkerCode,
			Type: "worker",
		},
		Action:      "skip",
		Description: "Punch skipped: " + kind,
		Metadata: mustJSON(map[string]string{
			"source_worker_code": sourceWorkerCode,
			"timestamp":          rawTimestamp,
			"kind":               kind,
		}),
		RunID: runID,
	})
}

// LogMaintenance records a maintenance operation with its affected count.
func (l *Logger) LogMaintenance(ctx context.Context, actor Actor, source Source, eventType EventType, operation string, affected int) {
	l.Log(&Event{
		Type:     eventType,
		Severity: SeverityWarning,
		Outcome:  OutcomeSuccess,
		Actor:    actor,
		Source:   source,
		Target: &Target{
			ID:   operation,
			Type: "attendance",
		},
		Action:      operation,
		Description: "Maintenance operation " + operation,
		Metadata:    mustJSON(map[string]int{"affected": affected}),
		RequestID:   getRequestID(ctx),
	})
}

// mustJSON converts a value to JSON, returning an empty object on error.
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// getRequestID extracts the request ID the API middleware stamped into
// the context, so audit events can be matched to HTTP request logs.
func getRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	return logging.RequestIDFromContext(ctx)
}

// SourceFromRequest creates a Source from an HTTP request.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = xff
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = xri
	}

	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// ActorFromUser creates an Actor from an authenticated operator.
func ActorFromUser(username, role string) Actor {
	return Actor{
		ID:         username,
		Type:       "user",
		Name:       username,
		Role:       role,
		AuthMethod: "jwt",
	}
}

// SystemActor returns an Actor representing the sync engine itself.
func SystemActor() Actor {
	return Actor{
		ID:   "system",
		Type: "system",
		Name: "Punchsync",
	}
}

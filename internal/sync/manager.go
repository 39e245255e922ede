// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
manager.go - Sync Manager Lifecycle and Trigger Gating

This file contains the core sync manager struct, initialization, and the
trigger plumbing that serializes runs.

Manager Components:
  - Store: persistence interface, satisfied by *database.DB
  - source.Source: punch source (ZKTeco-style API or direct device)
  - Resolver: worker identity resolution against the directory
  - TokenSealer: at-rest encryption for rotated source tokens
  - ProgressSink: websocket hub interface for live run-progress frames
  - EventPublisher: optional NATS publisher (see event_publisher.go)

Trigger Gating:
  - pending: capacity-1 channel; scheduled triggers park at most one run,
    further triggers are dropped and counted by the scheduler
  - runMu: run mutex shared by scheduled runs, manual runs, and the
    maintenance operations; RunNow reports ErrRunInFlight instead of waiting

Thread Safety:
  - runMu serializes pipeline execution
  - mu protects the watermark cache, publisher, sink, and current state
*/
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
)

// ErrRunInFlight is returned when a run or maintenance operation is refused
// because another one holds the run mutex. The API layer maps it to 409.
var ErrRunInFlight = errors.New("a sync run is already in flight")

// ErrTokenUnsupported is returned when token registration is requested for a
// source mode that has no token exchange (direct device connections).
var ErrTokenUnsupported = errors.New("source does not support token registration")

// Store defines the persistence operations the manager needs. *database.DB
// satisfies it.
type Store interface {
	InsertSyncRun(ctx context.Context, run *models.SyncRun) error
	CompleteRun(ctx context.Context, run *models.SyncRun, watermark time.Time) error
	GetLastRun(ctx context.Context) (*models.SyncRun, error)
	GetWatermark(ctx context.Context) (time.Time, bool, error)
	PersistAttendance(ctx context.Context, rec *models.AttendanceRecord, deviceScope bool) (models.PersistOutcome, error)
	ListAttendanceOrdered(ctx context.Context) ([]*models.AttendanceRecord, error)
	ApplyDirectionUpdates(ctx context.Context, updates []database.DirectionUpdate) (int64, error)
	PurgeDuplicates(ctx context.Context, deviceScope bool) (int64, error)
	DirectionTotalsSince(ctx context.Context, since time.Time) (models.DirectionTotals, error)
	SaveSourceToken(ctx context.Context, sealed string) error
	GetSourceToken(ctx context.Context) (string, error)
	HasSourceToken(ctx context.Context) (bool, error)
	DeleteSourceToken(ctx context.Context) error
	ListRuns(ctx context.Context, limit int) ([]*models.SyncRun, error)
}

// Resolver maps classified events to directory workers. Satisfied by
// *identity.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, ev models.ClassifiedEvent) (models.ResolvedEvent, error)
}

// TokenSealer encrypts source tokens before they reach the credentials
// table and decrypts them on the way back out. Satisfied by
// *auth.TokenSealer. A nil sealer stores tokens as-is.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Unseal(ciphertext string) (string, error)
}

// ProgressSink receives run-progress frames for live operator views.
// Implemented by internal/websocket.Hub.
type ProgressSink interface {
	BroadcastJSON(messageType string, data interface{})
}

// ProgressFrame is the websocket payload emitted on every run state
// transition and, with the terminal status filled in, on completion.
type ProgressFrame struct {
	RunID   string           `json:"run_id"`
	State   models.RunState  `json:"state"`
	Status  models.RunStatus `json:"status,omitempty"`
	Trigger string           `json:"trigger"`
	Counts  models.RunCounts `json:"counts"`
}

// Manager orchestrates attendance synchronization from the source to the
// database.
type Manager struct {
	cfg      *config.Config
	source   source.Source
	resolver Resolver
	store    Store
	auditor  *audit.Logger
	sealer   TokenSealer
	loc      *time.Location

	pending chan string // capacity-1 trigger gate
	runMu   sync.Mutex  // serializes run and maintenance execution

	mu            sync.RWMutex
	events        EventPublisher
	progress      ProgressSink
	state         models.RunState
	watermark     time.Time
	haveWatermark bool
}

// NewManager creates a sync manager. The auditor and sealer may be nil;
// the progress sink and event publisher are installed separately because
// they come up later in the supervision tree.
func NewManager(cfg *config.Config, src source.Source, resolver Resolver, store Store, auditor *audit.Logger, sealer TokenSealer) *Manager {
	m := &Manager{
		cfg:      cfg,
		source:   src,
		resolver: resolver,
		store:    store,
		auditor:  auditor,
		sealer:   sealer,
		loc:      cfg.SourceLocation(),
		pending:  make(chan string, 1),
		state:    models.RunStateIdle,
	}

	logging.Info().
		Bool("enabled", cfg.Sync.Enabled).
		Int("frequency_seconds", cfg.Sync.FrequencySeconds).
		Int("overlap_seconds", cfg.Sync.OverlapSeconds).
		Str("mode", string(cfg.Source.ResolvedMode())).
		Str("timezone", m.loc.String()).
		Msg("Sync manager config loaded")

	return m
}

// SetProgressSink installs the websocket hub for run-progress broadcasts.
func (m *Manager) SetProgressSink(sink ProgressSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = sink
}

// EnqueueRun parks one pending run behind the trigger gate. It returns false
// when a run is already parked; the caller accounts for the dropped trigger.
func (m *Manager) EnqueueRun(kind string) bool {
	select {
	case m.pending <- kind:
		return true
	default:
		logging.Debug().Str("trigger", kind).Msg("Run already pending, trigger dropped")
		return false
	}
}

// Serve implements suture.Service: it drains the pending gate, executing one
// run at a time until the context is canceled.
func (m *Manager) Serve(ctx context.Context) error {
	logging.Info().Msg("Sync manager started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync manager stopping")
			return ctx.Err()
		case kind := <-m.pending:
			m.runMu.Lock()
			run := m.execute(ctx, kind)
			m.runMu.Unlock()

			if run.Status != models.RunStatusSucceeded {
				logging.Warn().
					Str("run_id", run.ID).
					Str("status", string(run.Status)).
					Str("error", run.Error).
					Msg("Sync run did not succeed")
			}
		}
	}
}

// String implements suture.Service for supervisor logging.
func (m *Manager) String() string {
	return "sync-manager"
}

// RunNow executes one synchronous run for the manual trigger path. It
// returns ErrRunInFlight without blocking when another run holds the mutex.
func (m *Manager) RunNow(ctx context.Context) (*models.SyncRun, error) {
	if !m.runMu.TryLock() {
		return nil, ErrRunInFlight
	}
	defer m.runMu.Unlock()

	return m.execute(ctx, models.TriggerManual), nil
}

// State reports the pipeline state for the currently executing run, or Idle.
func (m *Manager) State() models.RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ProbeSource checks source connectivity without authenticating.
func (m *Manager) ProbeSource(ctx context.Context) (models.ProbeResult, error) {
	return m.source.Probe(ctx)
}

// RegisterSourceToken exchanges operator-supplied credentials for a fresh
// source token, installs it on the live client, and stores it sealed. Audit
// provenance is the caller's concern; the manager only rotates.
func (m *Manager) RegisterSourceToken(ctx context.Context, username, password string) error {
	registrar, ok := m.source.(source.TokenRegistrar)
	if !ok {
		return ErrTokenUnsupported
	}

	token, err := registrar.RegisterToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("register token: %w", err)
	}

	if err := m.storeToken(ctx, token); err != nil {
		return err
	}

	logging.Info().Str("source_user", username).Msg("Source token registered")
	return nil
}

// RestoreSourceToken installs the stored source token on the live client,
// so a rotation registered through the operator API survives a process
// restart. Without a stored token the client keeps the config token. Called
// once at startup, before the first scheduled run.
func (m *Manager) RestoreSourceToken(ctx context.Context) error {
	setter, ok := m.source.(source.TokenSetter)
	if !ok {
		return nil
	}

	sealed, err := m.store.GetSourceToken(ctx)
	if errors.Is(err, database.ErrNoCredentials) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load stored token: %w", err)
	}

	token := sealed
	if m.sealer != nil {
		if token, err = m.sealer.Unseal(sealed); err != nil {
			return fmt.Errorf("unseal stored token: %w", err)
		}
	}
	if token == "" {
		return nil
	}

	setter.SetToken(token)
	logging.Info().Msg("Stored source token restored")
	return nil
}

// ClearSourceToken removes the stored source credential. The live client
// keeps whatever token it currently holds; the next restart falls back to
// the config token.
func (m *Manager) ClearSourceToken(ctx context.Context) error {
	if err := m.store.DeleteSourceToken(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	logging.Info().Msg("Stored source token cleared")
	return nil
}

// RunHistory returns recent runs, newest first.
func (m *Manager) RunHistory(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	return m.store.ListRuns(ctx, limit)
}

// storeToken seals the token when a sealer is configured and persists it.
func (m *Manager) storeToken(ctx context.Context, token string) error {
	sealed := token
	if m.sealer != nil {
		var err error
		sealed, err = m.sealer.Seal(token)
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
	}
	if err := m.store.SaveSourceToken(ctx, sealed); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

// Status assembles the operator-facing statistics report.
func (m *Manager) Status(ctx context.Context) (*models.StatusReport, error) {
	report := &models.StatusReport{
		Enabled:          m.cfg.Sync.Enabled,
		FrequencySeconds: m.cfg.Sync.FrequencySeconds,
		Mode:             m.cfg.Source.ResolvedMode(),
		ServerConfigured: m.cfg.ServerConfigured(),
	}

	last, err := m.store.GetLastRun(ctx)
	switch {
	case err == nil:
		report.LastRunAt = &last.StartedAt
		report.LastRunStatus = last.Status
	case !errors.Is(err, database.ErrRunNotFound):
		return nil, fmt.Errorf("load last run: %w", err)
	}

	if wm, ok := m.loadWatermark(ctx); ok {
		report.Watermark = &wm
	}

	totals, err := m.store.DirectionTotalsSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load 24h totals: %w", err)
	}
	report.Last24H = totals

	configured, err := m.tokenConfigured(ctx)
	if err != nil {
		return nil, err
	}
	report.TokenConfigured = configured

	return report, nil
}

// tokenConfigured reports whether credentials suffice to talk to the source:
// device mode needs none, API mode needs a configured or stored token.
func (m *Manager) tokenConfigured(ctx context.Context) (bool, error) {
	if m.cfg.Source.ResolvedMode() == models.SourceModeDevice {
		return true, nil
	}
	if m.cfg.Source.Token != "" {
		return true, nil
	}
	stored, err := m.store.HasSourceToken(ctx)
	if err != nil {
		return false, fmt.Errorf("check stored token: %w", err)
	}
	return stored, nil
}

// loadWatermark returns the cached watermark, falling back to the store on
// first use. The cache is updated on every successful run.
func (m *Manager) loadWatermark(ctx context.Context) (time.Time, bool) {
	m.mu.RLock()
	wm, ok := m.watermark, m.haveWatermark
	m.mu.RUnlock()
	if ok {
		return wm, true
	}

	stored, found, err := m.store.GetWatermark(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load stored watermark")
		return time.Time{}, false
	}
	if !found {
		return time.Time{}, false
	}

	m.setWatermark(stored)
	return stored, true
}

func (m *Manager) setWatermark(t time.Time) {
	m.mu.Lock()
	m.watermark = t
	m.haveWatermark = true
	m.mu.Unlock()
}

func (m *Manager) setState(state models.RunState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// broadcast sends a frame to the progress sink when one is installed.
func (m *Manager) broadcast(messageType string, data interface{}) {
	m.mu.RLock()
	sink := m.progress
	m.mu.RUnlock()

	if sink == nil {
		return
	}
	sink.BroadcastJSON(messageType, data)
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/source"
)

// fakeSource implements source.Source, source.TokenRegistrar, and
// source.TokenSetter with scripted responses.
type fakeSource struct {
	mu            sync.Mutex
	punches       []models.RawPunch
	fetchErrs     []error // consumed one per Fetch; nil entry = success
	fetchCalls    int
	windows       []models.Window
	probe         models.ProbeResult
	registerCalls int
	registerErr   error
	token         string
}

func (s *fakeSource) Fetch(_ context.Context, window models.Window) ([]models.RawPunch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetchCalls++
	s.windows = append(s.windows, window)

	if len(s.fetchErrs) > 0 {
		err := s.fetchErrs[0]
		s.fetchErrs = s.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	out := make([]models.RawPunch, len(s.punches))
	copy(out, s.punches)
	return out, nil
}

func (s *fakeSource) Probe(context.Context) (models.ProbeResult, error) {
	return s.probe, nil
}

func (s *fakeSource) Mode() models.SourceMode {
	return models.SourceModeAPI
}

func (s *fakeSource) RegisterToken(_ context.Context, username, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registerCalls++
	if s.registerErr != nil {
		return "", s.registerErr
	}
	return "token-for-" + username, nil
}

func (s *fakeSource) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *fakeSource) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSource) calls() (fetches, registers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls, s.registerCalls
}

func (s *fakeSource) lastWindow() models.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.windows) == 0 {
		return models.Window{}
	}
	return s.windows[len(s.windows)-1]
}

// plainSource implements source.Source without TokenRegistrar, mimicking a
// direct device connection.
type plainSource struct {
	punches []models.RawPunch
	err     error
}

func (s *plainSource) Fetch(context.Context, models.Window) ([]models.RawPunch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.punches, nil
}

func (s *plainSource) Probe(context.Context) (models.ProbeResult, error) {
	return models.ProbeResult{Reachable: true}, nil
}

func (s *plainSource) Mode() models.SourceMode {
	return models.SourceModeDevice
}

// fakeStore is an in-memory Store with error injection hooks.
type fakeStore struct {
	mu            sync.Mutex
	runs          map[string]models.SyncRun
	completed     []models.SyncRun
	records       []*models.AttendanceRecord
	watermark     time.Time
	hasWatermark  bool
	token         string
	hasToken      bool
	insertRunErr  error
	completeErr   error
	persistErrFor map[string]error    // keyed by source worker code
	afterCreate   func(created int)   // called after each created row
	purgeResult   int64
	totals        models.DirectionTotals
}

func newFakeStore() *fakeStore {
	return &fakeStore{runs: make(map[string]models.SyncRun)}
}

func (s *fakeStore) InsertSyncRun(_ context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertRunErr != nil {
		return s.insertRunErr
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, run *models.SyncRun, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completeErr != nil {
		return s.completeErr
	}
	if _, ok := s.runs[run.ID]; !ok {
		return database.ErrRunNotFound
	}
	s.runs[run.ID] = *run
	s.completed = append(s.completed, *run)
	if !watermark.IsZero() {
		s.watermark = watermark
		s.hasWatermark = true
	}
	return nil
}

func (s *fakeStore) GetLastRun(context.Context) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.completed) == 0 {
		return nil, database.ErrRunNotFound
	}
	run := s.completed[len(s.completed)-1]
	return &run, nil
}

func (s *fakeStore) GetWatermark(context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, s.hasWatermark, nil
}

func (s *fakeStore) PersistAttendance(_ context.Context, rec *models.AttendanceRecord, deviceScope bool) (models.PersistOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistErrFor[rec.SourceWorkerCode]; err != nil {
		return "", err
	}
	if rec.WorkerID == "" {
		return models.OutcomeSkippedUnmapped, nil
	}

	for _, existing := range s.records {
		if existing.WorkerID == rec.WorkerID &&
			existing.Timestamp.Equal(rec.Timestamp) &&
			existing.Direction == rec.Direction &&
			(!deviceScope || existing.DeviceLabel == rec.DeviceLabel) {
			return models.OutcomeDuplicate, nil
		}
	}

	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	rec.ID = stored.ID
	s.records = append(s.records, &stored)

	if s.afterCreate != nil {
		s.afterCreate(len(s.records))
	}
	return models.OutcomeCreated, nil
}

func (s *fakeStore) ListAttendanceOrdered(context.Context) ([]*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.AttendanceRecord, len(s.records))
	for i, rec := range s.records {
		c := *rec
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WorkerID != out[j].WorkerID {
			return out[i].WorkerID < out[j].WorkerID
		}
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) ApplyDirectionUpdates(_ context.Context, updates []database.DirectionUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, u := range updates {
		for _, rec := range s.records {
			if rec.ID == u.ID && rec.Direction != u.Direction {
				rec.Direction = u.Direction
				changed++
			}
		}
	}
	return changed, nil
}

func (s *fakeStore) PurgeDuplicates(context.Context, bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeResult, nil
}

func (s *fakeStore) DirectionTotalsSince(context.Context, time.Time) (models.DirectionTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals, nil
}

func (s *fakeStore) SaveSourceToken(_ context.Context, sealed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = sealed
	s.hasToken = true
	return nil
}

func (s *fakeStore) GetSourceToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasToken {
		return "", database.ErrNoCredentials
	}
	return s.token, nil
}

func (s *fakeStore) HasSourceToken(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasToken, nil
}

func (s *fakeStore) DeleteSourceToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.hasToken = false
	return nil
}

func (s *fakeStore) ListRuns(_ context.Context, limit int) ([]*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	out := make([]*models.SyncRun, 0, len(s.completed))
	for i := len(s.completed) - 1; i >= 0 && len(out) < limit; i-- {
		run := s.completed[i]
		out = append(out, &run)
	}
	return out, nil
}

func (s *fakeStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeStore) storedToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeStore) storedWatermark() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, s.hasWatermark
}

func (s *fakeStore) lastCompleted() (models.SyncRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.completed) == 0 {
		return models.SyncRun{}, false
	}
	return s.completed[len(s.completed)-1], true
}

// directionsFor returns the stored directions of one worker in timestamp
// order.
func (s *fakeStore) directionsFor(workerID string) []models.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*models.AttendanceRecord
	for _, rec := range s.records {
		if rec.WorkerID == workerID {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})

	out := make([]models.Direction, len(recs))
	for i, rec := range recs {
		out[i] = rec.Direction
	}
	return out
}

// fakeResolver maps source worker codes through a static table.
type fakeResolver struct {
	mu      sync.Mutex
	mapping map[string]string // source code -> worker ID
	errFor  map[string]error
	called  int
}

func (r *fakeResolver) Resolve(_ context.Context, ev models.ClassifiedEvent) (models.ResolvedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.called++
	if err := r.errFor[ev.SourceWorkerCode]; err != nil {
		return models.ResolvedEvent{}, err
	}
	id, ok := r.mapping[ev.SourceWorkerCode]
	return models.ResolvedEvent{ClassifiedEvent: ev, WorkerID: id, Mapped: ok}, nil
}

func (r *fakeResolver) resolveCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.called
}

// fakeSink records broadcast frames.
type fakeSink struct {
	mu     sync.Mutex
	frames []sinkFrame
}

type sinkFrame struct {
	messageType string
	data        interface{}
}

func (s *fakeSink) BroadcastJSON(messageType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, sinkFrame{messageType: messageType, data: data})
}

// states extracts the RunState sequence from sync_state frames.
func (s *fakeSink) states() []models.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RunState
	for _, f := range s.frames {
		if f.messageType != "sync_state" {
			continue
		}
		if frame, ok := f.data.(ProgressFrame); ok {
			out = append(out, frame.State)
		}
	}
	return out
}

func (s *fakeSink) completions() []ProgressFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ProgressFrame
	for _, f := range s.frames {
		if f.messageType != "sync_completed" {
			continue
		}
		if frame, ok := f.data.(ProgressFrame); ok {
			out = append(out, frame)
		}
	}
	return out
}

// fakePublisher collects published records.
type fakePublisher struct {
	mu   sync.Mutex
	recs []models.AttendanceRecord
	err  error
}

func (p *fakePublisher) PublishCreated(_ context.Context, _ string, rec *models.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, *rec)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

// fakeSealer wraps tokens in a recognizable envelope.
type fakeSealer struct{}

func (fakeSealer) Seal(plaintext string) (string, error) {
	return fmt.Sprintf("sealed(%s)", plaintext), nil
}

func (fakeSealer) Unseal(ciphertext string) (string, error) {
	inner, ok := strings.CutPrefix(ciphertext, "sealed(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return "", fmt.Errorf("not a sealed envelope: %q", ciphertext)
	}
	return strings.TrimSuffix(inner, ")"), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{
			Mode:     "api",
			Host:     "attendance.example.com",
			Port:     8081,
			Timezone: "UTC",
			Username: "sync-svc",
			Password: "sync-pass",
		},
		Sync: config.SyncConfig{
			Enabled:             true,
			FrequencySeconds:    300,
			OverlapSeconds:      5,
			RejectFutureMinutes: 5,
			MaxAgeDays:          90,
		},
	}
}

func newTestManager(src source.Source, store Store, resolver Resolver) *Manager {
	return NewManager(testConfig(), src, resolver, store, nil, nil)
}

// punchAt builds a raw punch for a worker code at a clock time yesterday
// (UTC). Yesterday keeps every fixture timestamp in the past regardless of
// when the test runs, well inside the sanity bounds.
func punchAt(code string, hour, minute int) models.RawPunch {
	day := time.Now().UTC().AddDate(0, 0, -1)
	return models.RawPunch{
		SourceWorkerCode:  code,
		Timestamp:         time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC),
		SourceDeviceLabel: "lobby-1",
	}
}

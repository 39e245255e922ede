// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build integration

package testinfra

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// terminalTimeLayout is the naive timestamp format of the vendor API.
const terminalTimeLayout = "2006-01-02 15:04:05"

// TerminalPunch is one transaction row served by the fake terminal, in the
// canonical vendor field naming.
type TerminalPunch struct {
	EmpCode       string `json:"emp_code"`
	PunchTime     string `json:"punch_time"`
	PunchState    string `json:"punch_state"`
	TerminalSN    string `json:"terminal_sn,omitempty"`
	TerminalAlias string `json:"terminal_alias,omitempty"`
}

// FakeTerminal emulates the vendor attendance API: token registration at
// /api-token-auth/ and the paginated transaction listing at
// /iclock/api/transactions/. It validates the bearer token, filters by the
// start_time/end_time window, and paginates with absolute next links, so
// tests exercise the real API client end to end.
type FakeTerminal struct {
	Server *httptest.Server

	mu       sync.Mutex
	username string
	password string
	token    string
	loc      *time.Location
	punches  []TerminalPunch

	// AuthCalls counts token registration requests.
	AuthCalls int
	// FetchCalls counts transaction page requests.
	FetchCalls int

	// Intercept, when set, runs before normal handling. Returning true
	// marks the request as handled, which lets tests inject failures.
	Intercept func(w http.ResponseWriter, r *http.Request) bool
}

// TerminalOption configures the fake terminal.
type TerminalOption func(*FakeTerminal)

// WithTerminalLocation sets the timezone the fake parses naive timestamps in.
func WithTerminalLocation(loc *time.Location) TerminalOption {
	return func(ft *FakeTerminal) {
		ft.loc = loc
	}
}

// WithTerminalToken seeds the initial bearer token instead of a generated one.
func WithTerminalToken(token string) TerminalOption {
	return func(ft *FakeTerminal) {
		ft.token = token
	}
}

// NewFakeTerminal starts a fake terminal accepting the given credentials.
// The server is shut down automatically when the test finishes.
func NewFakeTerminal(t *testing.T, username, password string, opts ...TerminalOption) *FakeTerminal {
	t.Helper()

	ft := &FakeTerminal{
		username: username,
		password: password,
		token:    "terminal-token-1",
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(ft)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api-token-auth/", ft.handleTokenAuth)
	mux.HandleFunc("/iclock/api/transactions/", ft.handleTransactions)

	ft.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ft.Intercept != nil && ft.Intercept(w, r) {
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ft.Server.Close)

	return ft
}

// Addr returns the host and port tests plug into the source config.
func (ft *FakeTerminal) Addr() (string, int) {
	u, err := url.Parse(ft.Server.URL)
	if err != nil {
		return "", 0
	}
	port, _ := strconv.Atoi(u.Port())
	return u.Hostname(), port
}

// SeedPunches replaces the transaction rows the fake serves.
func (ft *FakeTerminal) SeedPunches(punches []TerminalPunch) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.punches = append([]TerminalPunch(nil), punches...)
}

// Token returns the currently valid bearer token.
func (ft *FakeTerminal) Token() string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.token
}

// RotateToken invalidates the current token and returns the new one.
// Requests carrying the old token get a 401 until re-registration.
func (ft *FakeTerminal) RotateToken() string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.token = "terminal-token-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	return ft.token
}

func (ft *FakeTerminal) handleTokenAuth(w http.ResponseWriter, r *http.Request) {
	ft.mu.Lock()
	ft.AuthCalls++
	ft.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ft.mu.Lock()
	ok := creds.Username == ft.username && creds.Password == ft.password
	token := ft.token
	ft.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"non_field_errors": []string{"Unable to log in with provided credentials."},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (ft *FakeTerminal) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ft.mu.Lock()
	ft.FetchCalls++
	token := ft.token
	ft.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+token {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token."})
		return
	}

	q := r.URL.Query()
	matched := ft.matchWindow(q.Get("start_time"), q.Get("end_time"))

	pageSize := len(matched)
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v > 0 {
		pageSize = v
	}
	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 1 {
		page = v
	}

	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	next := ""
	if end < len(matched) {
		nq := r.URL.Query()
		nq.Set("page", strconv.Itoa(page+1))
		next = ft.Server.URL + r.URL.Path + "?" + nq.Encode()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data": matched[start:end],
		"next": next,
	})
}

// matchWindow filters seeded punches to the inclusive query window. Rows
// with unparseable times are served as-is, matching terminals that echo
// whatever their clock produced.
func (ft *FakeTerminal) matchWindow(startRaw, endRaw string) []TerminalPunch {
	ft.mu.Lock()
	punches := append([]TerminalPunch(nil), ft.punches...)
	loc := ft.loc
	ft.mu.Unlock()

	start, errStart := time.ParseInLocation(terminalTimeLayout, startRaw, loc)
	end, errEnd := time.ParseInLocation(terminalTimeLayout, endRaw, loc)
	if errStart != nil || errEnd != nil {
		return punches
	}

	matched := make([]TerminalPunch, 0, len(punches))
	for _, p := range punches {
		t, err := time.ParseInLocation(terminalTimeLayout, p.PunchTime, loc)
		if err != nil {
			matched = append(matched, p)
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}

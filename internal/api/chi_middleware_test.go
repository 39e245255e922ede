// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/punchsync/internal/logging"
)

// okHandler returns a handler that records whether it ran.
func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

// hitFrom sends one GET through the handler from the given remote address
// and returns the response status.
func hitFrom(handler http.Handler, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

// =====================================================
// ChiMiddleware Configuration Tests
// =====================================================

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)

	if m == nil {
		t.Fatal("NewChiMiddleware returned nil")
	}
	if m.config == nil {
		t.Fatal("config is nil")
	}

	// No CORS origins until the operator configures some.
	if got := len(m.config.CORSAllowedOrigins); got != 0 {
		t.Errorf("default CORS origins = %d, want none", got)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
	if m.config.RateLimitRequests != 120 {
		t.Errorf("RateLimitRequests = %d, want 120", m.config.RateLimitRequests)
	}
}

func TestNewChiMiddleware_CustomConfig(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         3600,
		RateLimitRequests:  50,
		RateLimitWindow:    30 * time.Second,
		RateLimitDisabled:  true,
	})

	if got := m.config.CORSAllowedOrigins[0]; got != "https://example.com" {
		t.Errorf("CORS origin = %q, want https://example.com", got)
	}
	if m.config.RateLimitRequests != 50 {
		t.Errorf("RateLimitRequests = %d, want 50", m.config.RateLimitRequests)
	}
	if !m.config.RateLimitDisabled {
		t.Error("RateLimitDisabled should be true")
	}
}

func TestNewChiMiddlewareFromConfig(t *testing.T) {
	m := NewChiMiddlewareFromConfig([]string{"https://example.com", "https://other.com"}, 200)

	if got := len(m.config.CORSAllowedOrigins); got != 2 {
		t.Errorf("CORS origins = %d, want 2", got)
	}
	if m.config.RateLimitRequests != 200 {
		t.Errorf("RateLimitRequests = %d, want 200", m.config.RateLimitRequests)
	}
	if m.config.RateLimitDisabled {
		t.Error("RateLimitDisabled should be false for a positive RPM")
	}
}

func TestNewChiMiddlewareFromConfig_NonPositiveRPM(t *testing.T) {
	for _, rpm := range []int{0, -1} {
		m := NewChiMiddlewareFromConfig(nil, rpm)
		if !m.config.RateLimitDisabled {
			t.Errorf("rpm %d: RateLimitDisabled = false, want true", rpm)
		}
	}
}

// =====================================================
// CORS Middleware Tests
// =====================================================

func TestChiMiddleware_CORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantAllow   string
		wantHandler bool
	}{
		{
			name:        "wildcard answers any origin",
			allowed:     []string{"*"},
			origin:      "https://example.com",
			wantAllow:   "*",
			wantHandler: true,
		},
		{
			name:        "allowed origin is reflected back",
			allowed:     []string{"https://allowed.com"},
			origin:      "https://allowed.com",
			wantAllow:   "https://allowed.com",
			wantHandler: true,
		},
		{
			// go-chi/cors does not block the request; it just withholds
			// the header and lets the browser enforce the policy.
			name:        "disallowed origin gets no header",
			allowed:     []string{"https://allowed.com"},
			origin:      "https://not-allowed.com",
			wantAllow:   "",
			wantHandler: true,
		},
		{
			name:        "same origin request passes untouched",
			allowed:     []string{"https://allowed.com"},
			origin:      "",
			wantAllow:   "",
			wantHandler: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChiMiddleware(&ChiMiddlewareConfig{
				CORSAllowedOrigins: tt.allowed,
				CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
				CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
				CORSMaxAge:         86400,
			})

			var called bool
			handler := m.CORS()(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if called != tt.wantHandler {
				t.Errorf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestChiMiddleware_CORS_VaryOnSpecificOrigin(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://allowed.com"},
		CORSAllowedMethods: []string{"GET"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         86400,
	})
	handler := m.CORS()(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://allowed.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Reflected origins are cache-keyed on the Origin header.
	if w.Header().Get("Vary") == "" {
		t.Error("Vary should be set when a specific origin is reflected")
	}
}

func TestChiMiddleware_CORS_Preflight(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
	})

	var called bool
	handler := m.CORS()(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 200 or 204", w.Code)
	}
	if called {
		t.Error("preflight must be answered by the middleware, not the handler")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods should be set on preflight")
	}
}

// =====================================================
// Rate Limiting Middleware Tests
// =====================================================

func TestChiMiddleware_RateLimit_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitDisabled: true,
		RateLimitRequests: 3,
		RateLimitWindow:   time.Second,
	})

	var called bool
	handler := m.RateLimit()(okHandler(&called))

	for i := 0; i < 10; i++ {
		if got := hitFrom(handler, "192.168.1.1:12345"); got != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
	if !called {
		t.Error("handler never ran")
	}
}

func TestChiMiddleware_RateLimit_Enforced(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 3,
		RateLimitWindow:   time.Minute, // long window so the test never refills
	})
	handler := m.RateLimit()(okHandler(nil))

	var ok, limited int
	for i := 0; i < 5; i++ {
		switch hitFrom(handler, "192.168.1.1:12345") {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		}
	}

	if ok != 3 {
		t.Errorf("allowed = %d, want 3", ok)
	}
	if limited != 2 {
		t.Errorf("limited = %d, want 2", limited)
	}
}

func TestChiMiddleware_RateLimit_PerIP(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	handler := m.RateLimit()(okHandler(nil))

	// Each address has its own budget; exhausting one must not bleed into
	// the others.
	for _, addr := range []string{"192.168.1.1:12345", "192.168.1.2:12345", "192.168.1.3:12345"} {
		for i := 0; i < 2; i++ {
			if got := hitFrom(handler, addr); got != http.StatusOK {
				t.Errorf("%s request %d: status = %d, want %d", addr, i, got, http.StatusOK)
			}
		}
		if got := hitFrom(handler, addr); got != http.StatusTooManyRequests {
			t.Errorf("%s over budget: status = %d, want %d", addr, got, http.StatusTooManyRequests)
		}
	}
}

func TestChiMiddleware_RateLimitCustom_Enforced(t *testing.T) {
	m := NewChiMiddleware(nil)
	handler := m.RateLimitCustom(RateLimitConfig{Requests: 2, Window: time.Minute})(okHandler(nil))

	for i := 0; i < 2; i++ {
		if got := hitFrom(handler, "192.168.1.100:12345"); got != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
	if got := hitFrom(handler, "192.168.1.100:12345"); got != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want %d", got, http.StatusTooManyRequests)
	}
}

func TestChiMiddleware_RateLimitCustom_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	handler := m.RateLimitCustom(RateLimitConfig{Requests: 1, Window: time.Minute})(okHandler(nil))

	// The global kill switch overrides per-route tiers.
	for i := 0; i < 10; i++ {
		if got := hitFrom(handler, "192.168.1.100:12345"); got != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
}

func TestRateLimitTiers(t *testing.T) {
	tests := []struct {
		name     string
		tier     RateLimitConfig
		requests int
		window   time.Duration
	}{
		{"auth", RateLimitAuth, 5, time.Minute},
		{"login", RateLimitLogin, 5, 5 * time.Minute},
		{"sync", RateLimitSync, 10, time.Minute},
		{"websocket", RateLimitWebSocket, 30, time.Minute},
		{"health", RateLimitHealth, 1000, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tier.Requests != tt.requests {
				t.Errorf("Requests = %d, want %d", tt.tier.Requests, tt.requests)
			}
			if tt.tier.Window != tt.window {
				t.Errorf("Window = %v, want %v", tt.tier.Window, tt.window)
			}
		})
	}
}

func TestChiMiddleware_RateLimitLogin_Enforced(t *testing.T) {
	m := NewChiMiddleware(nil)
	handler := m.RateLimitLogin()(okHandler(nil))

	// The login tier allows five attempts per window.
	for i := 0; i < 5; i++ {
		if got := hitFrom(handler, "192.168.1.50:12345"); got != http.StatusOK {
			t.Errorf("attempt %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
	if got := hitFrom(handler, "192.168.1.50:12345"); got != http.StatusTooManyRequests {
		t.Errorf("sixth attempt: status = %d, want %d", got, http.StatusTooManyRequests)
	}
}

// =====================================================
// Security Headers Tests
// =====================================================

func TestAPISecurityHeaders(t *testing.T) {
	handler := APISecurityHeaders()(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	// HSTS must not be set for plain HTTP requests
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("Strict-Transport-Security = %q, want empty for plain HTTP", hsts)
	}
}

func TestAPISecurityHeaders_HSTSOverTLS(t *testing.T) {
	handler := APISecurityHeaders()(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "https://example.com/api/v1/status", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	hsts := w.Header().Get("Strict-Transport-Security")
	if hsts != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q, want max-age=31536000; includeSubDomains", hsts)
	}
}

func TestAPISecurityHeaders_HSTSBehindProxy(t *testing.T) {
	handler := APISecurityHeaders()(okHandler(nil))

	// TLS terminated at a reverse proxy
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Strict-Transport-Security should be set behind a TLS-terminating proxy")
	}
}

// =====================================================
// Request ID Tests
// =====================================================

func TestRequestIDWithLogging_GeneratesID(t *testing.T) {
	var gotReqID, gotLogID, gotCorrID string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = chimiddleware.GetReqID(r.Context())
		gotLogID = logging.RequestIDFromContext(r.Context())
		gotCorrID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotReqID == "" {
		t.Error("chi request ID should be set when no header is provided")
	}
	if gotLogID == "" {
		t.Error("logging context request ID should be set")
	}
	if gotCorrID == "" {
		t.Error("logging context correlation ID should be set")
	}
}

func TestRequestIDWithLogging_PropagatesHeader(t *testing.T) {
	var gotReqID, gotLogID string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = chimiddleware.GetReqID(r.Context())
		gotLogID = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotReqID != "client-supplied-id" {
		t.Errorf("chi request ID = %q, want client-supplied-id", gotReqID)
	}
	if gotLogID != "client-supplied-id" {
		t.Errorf("logging request ID = %q, want client-supplied-id", gotLogID)
	}
}

// =====================================================
// Integration Tests
// =====================================================

func TestChiMiddleware_CORSAndRateLimit_Combined(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         86400,
		RateLimitRequests:  2,
		RateLimitWindow:    time.Minute,
	})
	handler := m.CORS()(m.RateLimit()(okHandler(nil)))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://example.com")
		req.RemoteAddr = "10.0.0.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		w := send()
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("request %d lost its CORS header", i)
		}
	}

	// The limiter fires after the budget, CORS headers or not.
	if w := send(); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	config := DefaultChiMiddlewareConfig()

	if got := len(config.CORSAllowedOrigins); got != 0 {
		t.Errorf("default CORS origins = %d, want none until configured", got)
	}
	if got := len(config.CORSAllowedMethods); got != 3 {
		t.Errorf("CORSAllowedMethods = %d entries, want 3", got)
	}
	if got := len(config.CORSAllowedHeaders); got != 3 {
		t.Errorf("CORSAllowedHeaders = %d entries, want 3", got)
	}
	if config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", config.CORSMaxAge)
	}
	if config.RateLimitRequests != 120 {
		t.Errorf("RateLimitRequests = %d, want 120", config.RateLimitRequests)
	}
	if config.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", config.RateLimitWindow)
	}
	if config.RateLimitDisabled {
		t.Error("RateLimitDisabled should be false by default")
	}
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/punchsync/internal/auth"
	"github.com/tomtom215/punchsync/internal/config"
)

// testSecurityConfig hashes at MinCost to keep the suite fast; production
// hashing goes through auth.HashPassword.
func testSecurityConfig(t *testing.T, password string) *config.SecurityConfig {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error = %v", err)
	}
	return &config.SecurityConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		SessionTimeout:       time.Hour,
		OperatorUsername:     "operator",
		OperatorPasswordHash: string(hash),
	}
}

// newLoginHandler builds a handler with working operator auth.
func newLoginHandler(t *testing.T) (*Handler, *auth.JWTManager) {
	t.Helper()

	cfg := testAPIConfig()
	cfg.Security = *testSecurityConfig(t, "correct-horse-battery")

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	operator, err := auth.NewOperator(&cfg.Security)
	if err != nil {
		t.Fatalf("NewOperator() error = %v", err)
	}

	return NewHandler(nil, nil, cfg, jwtManager, operator, nil, nil), jwtManager
}

func postLogin(handler *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.Login(w, req)
	return w
}

// TestLogin_MethodNotAllowed rejects non-POST requests
func TestLogin_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	handler, _ := newLoginHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	w := httptest.NewRecorder()
	handler.Login(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
	assertErrorCode(t, decodeAPIResponse(t, w), "METHOD_NOT_ALLOWED")
}

// TestLogin_InvalidBody rejects malformed JSON
func TestLogin_InvalidBody(t *testing.T) {
	t.Parallel()

	handler, _ := newLoginHandler(t)

	w := postLogin(handler, "not json at all")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	assertErrorCode(t, decodeAPIResponse(t, w), "INVALID_REQUEST")
}

// TestLogin_MissingPassword rejects incomplete credentials
func TestLogin_MissingPassword(t *testing.T) {
	t.Parallel()

	handler, _ := newLoginHandler(t)

	w := postLogin(handler, `{"username":"operator"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	assertErrorCode(t, decodeAPIResponse(t, w), "VALIDATION_ERROR")
}

// TestLogin_AuthDisabled returns 403 when no operator is configured
func TestLogin_AuthDisabled(t *testing.T) {
	t.Parallel()

	handler := NewHandler(nil, nil, testAPIConfig(), nil, nil, nil, nil)

	w := postLogin(handler, `{"username":"operator","password":"secret"}`)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
	assertErrorCode(t, decodeAPIResponse(t, w), "AUTH_DISABLED")
}

// TestLogin_JWTNotConfigured returns 500 when the operator exists but the
// session manager does not
func TestLogin_JWTNotConfigured(t *testing.T) {
	t.Parallel()

	cfg := testAPIConfig()
	cfg.Security = *testSecurityConfig(t, "correct-horse-battery")
	operator, err := auth.NewOperator(&cfg.Security)
	if err != nil {
		t.Fatalf("NewOperator() error = %v", err)
	}

	handler := NewHandler(nil, nil, cfg, nil, operator, nil, nil)

	w := postLogin(handler, `{"username":"operator","password":"correct-horse-battery"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	assertErrorCode(t, decodeAPIResponse(t, w), "AUTH_NOT_CONFIGURED")
}

// TestLogin_InvalidCredentials rejects a wrong password without leaking
// which half was wrong
func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	handler, _ := newLoginHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "wrong password",
			body: `{"username":"operator","password":"wrong"}`,
		},
		{
			name: "unknown username",
			body: `{"username":"intruder","password":"correct-horse-battery"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postLogin(handler, tt.body)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", w.Code)
			}

			response := decodeAPIResponse(t, w)
			assertErrorCode(t, response, "INVALID_CREDENTIALS")
			if response.Error.Message != "Invalid username or password" {
				t.Errorf("message = %q, want the generic form", response.Error.Message)
			}
		})
	}
}

// TestLogin_Success issues a token, a cookie and the admin role
func TestLogin_Success(t *testing.T) {
	t.Parallel()

	handler, jwtManager := newLoginHandler(t)

	w := postLogin(handler, `{"username":"operator","password":"correct-horse-battery"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	response := decodeAPIResponse(t, w)
	if response.Status != "success" {
		t.Errorf("Expected status 'success', got '%s'", response.Status)
	}

	data, ok := response.Data.(map[string]interface{})
	if !ok {
		t.Fatal("response data is not a map")
	}

	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("token missing from response")
	}
	if data["username"] != "operator" {
		t.Errorf("username = %v, want operator", data["username"])
	}
	if data["role"] != auth.RoleAdmin {
		t.Errorf("role = %v, want admin", data["role"])
	}

	// The issued token must round-trip through validation.
	claims, err := jwtManager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Username != "operator" || claims.Role != auth.RoleAdmin {
		t.Errorf("claims = %s/%s, want operator/admin", claims.Username, claims.Role)
	}

	// And the session cookie must be HTTP-only and strict.
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("token cookie not set")
	}
	if !cookie.HttpOnly {
		t.Error("cookie should be HTTP-only")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("cookie should be SameSite=Strict")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want /", cookie.Path)
	}
	if cookie.Value != token {
		t.Error("cookie should carry the issued token")
	}
}

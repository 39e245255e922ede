// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// capturedSecurityLogger returns a SecurityLogger whose JSON lines land in buf.
func capturedSecurityLogger(buf *bytes.Buffer) *SecurityLogger {
	return NewSecurityLoggerWithLogger(zerolog.New(buf))
}

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty stays empty", "", ""},
		{"short token fully masked", "short", "***"},
		{"twelve chars still fully masked", "exactlytwelv", "***"},
		{"jwt keeps edges only", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9", "eyJh...VCJ9"},
		{"device api token keeps edges only", "pat-7f3a9c01d2e4b865", "pat-...b865"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		want     string
	}{
		{"empty stays empty", "", ""},
		{"single char fully masked", "a", "***"},
		{"two chars fully masked", "ab", "***"},
		{"keeps two char prefix", "johndoe", "jo***"},
		{"long name same prefix rule", "administrator", "ad***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeUsername(tt.username); got != tt.want {
				t.Errorf("SanitizeUsername(%q) = %q, want %q", tt.username, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	// Anything mentioning credential material collapses to a generic
	// message. Harmless errors pass through untouched.
	generic := []string{
		"invalid password",
		"token expired",
		"secret key invalid",
		"Bearer token missing",
		"authorization failed",
		"cookie missing",
	}
	for _, in := range generic {
		if got := SanitizeError(in); got != "authentication error" {
			t.Errorf("SanitizeError(%q) = %q, want generic message", in, got)
		}
	}

	if got := SanitizeError("device unreachable"); got != "device unreachable" {
		t.Errorf("SanitizeError passthrough = %q, want unchanged", got)
	}
	if got := SanitizeError(""); got != "" {
		t.Errorf("SanitizeError(\"\") = %q, want empty", got)
	}
}

func TestSanitizeError_TruncatesLongErrors(t *testing.T) {
	t.Parallel()

	got := SanitizeError(strings.Repeat("x", 300))

	if len(got) != 203 {
		t.Errorf("truncated length = %d, want 203 (200 plus ellipsis)", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated error should end with ellipsis")
	}
}

func TestSanitizeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"plain key passes through", "name", "John", "John"},
		{"worker id passes through", "worker_id", "W-1041", "W-1041"},
		{"token masked", "token", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9", "eyJh...VCJ9"},
		{"short password fully masked", "password", "secret123", "***"},
		{"device token partially masked", "device_token", "token-value-12345", "toke...2345"},
		{"api key partially masked", "api_key", "key-12345678901234", "key-...1234"},
		{"key check is case insensitive", "API_KEY", "key-12345678901234", "key-...1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeValue(tt.key, tt.value); got != tt.want {
				t.Errorf("SanitizeValue(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestSecurityLogger_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogEvent(&SecurityEvent{
		Event:     "source_probe",
		Username:  "operator",
		IPAddress: "192.168.1.1",
		UserAgent: "curl/8.5.0",
		Success:   true,
		Details:   map[string]string{"device_token": "token-value-12345"},
	})

	line := buf.String()
	if !strings.Contains(line, `"event":"source_probe"`) {
		t.Errorf("missing event field: %s", line)
	}
	if !strings.Contains(line, `"status":"success"`) {
		t.Errorf("missing status field: %s", line)
	}
	if !strings.Contains(line, `"username":"op***"`) {
		t.Errorf("username not sanitized: %s", line)
	}
	if !strings.Contains(line, `"device_token":"toke...2345"`) {
		t.Errorf("detail value not sanitized: %s", line)
	}
	if strings.Contains(line, "token-value-12345") {
		t.Errorf("raw token leaked into log line: %s", line)
	}
}

func TestSecurityLogger_LogEvent_Failure(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogEvent(&SecurityEvent{
		Event:   "login_failed",
		Success: false,
		Error:   "invalid password",
	})

	line := buf.String()
	if !strings.Contains(line, `"status":"failed"`) {
		t.Errorf("missing failed status: %s", line)
	}
	if !strings.Contains(line, `"error":"authentication error"`) {
		t.Errorf("error text not sanitized: %s", line)
	}
}

func TestSecurityLogger_LogEvent_OmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogEvent(&SecurityEvent{Event: "scheduler_adjusted", Success: true})

	line := buf.String()
	for _, field := range []string{`"username"`, `"ip"`, `"user_agent"`, `"error"`} {
		if strings.Contains(line, field) {
			t.Errorf("unset field %s should be omitted: %s", field, line)
		}
	}
}

func TestSecurityLogger_LogLoginSuccess(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogLoginSuccess("operator", "192.168.1.1", "Mozilla/5.0")

	line := buf.String()
	if !strings.Contains(line, `"event":"login_success"`) {
		t.Errorf("missing login_success event: %s", line)
	}
	if !strings.Contains(line, `"status":"success"`) {
		t.Errorf("missing success status: %s", line)
	}
}

func TestSecurityLogger_LogLoginFailure(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogLoginFailure("operator", "192.168.1.1", "Mozilla/5.0", "invalid password")

	line := buf.String()
	if !strings.Contains(line, `"event":"login_failed"`) {
		t.Errorf("missing login_failed event: %s", line)
	}
	if !strings.Contains(line, `"status":"failed"`) {
		t.Errorf("missing failed status: %s", line)
	}
	if strings.Contains(line, "invalid password") {
		t.Errorf("raw failure reason leaked: %s", line)
	}
}

func TestSecurityLogger_LogTokenStored(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogTokenStored("admin", "192.168.1.1")

	line := buf.String()
	if !strings.Contains(line, `"event":"token_stored"`) {
		t.Errorf("missing token_stored event: %s", line)
	}
	if !strings.Contains(line, `"status":"success"`) {
		t.Errorf("missing success status: %s", line)
	}
}

func TestSecurityLogger_LogAuthRejected(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.LogAuthRejected("192.168.1.1", "/api/v1/sync/trigger", "token expired")

	line := buf.String()
	if !strings.Contains(line, `"event":"auth_rejected"`) {
		t.Errorf("missing auth_rejected event: %s", line)
	}
	if !strings.Contains(line, "/api/v1/sync/trigger") {
		t.Errorf("missing rejected path: %s", line)
	}
	if !strings.Contains(line, "authentication error") {
		t.Errorf("rejection reason not sanitized: %s", line)
	}
}

func TestSecurityLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	secLog := capturedSecurityLogger(&buf)

	tests := []struct {
		name    string
		logFunc func()
		want    string
	}{
		{"Debug", func() { secLog.Debug("tracing") }, `"level":"debug"`},
		{"Info", func() { secLog.Info("routine") }, `"level":"info"`},
		{"Warn", func() { secLog.Warn("suspicious") }, `"level":"warn"`},
		{"Error", func() { secLog.Error("broken") }, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()
			if got := buf.String(); !strings.Contains(got, tt.want) {
				t.Errorf("want %s in output: %s", tt.want, got)
			}
		})
	}
}

func TestSecurityLogger_FieldPairs(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	secLog.Info("lockout", "attempts", 5, "source_ip", "10.0.0.9")

	line := buf.String()
	if !strings.Contains(line, `"attempts":5`) {
		t.Errorf("missing attempts field: %s", line)
	}
	if !strings.Contains(line, `"source_ip":"10.0.0.9"`) {
		t.Errorf("missing source_ip field: %s", line)
	}
}

func TestSecurityLogger_FieldPairs_SkipsMalformed(t *testing.T) {
	var buf bytes.Buffer
	secLog := capturedSecurityLogger(&buf)

	// A dangling value and a non-string key are both dropped silently.
	secLog.Info("odd", "good", 1, 42, "bad-key", "dangling")

	line := buf.String()
	if !strings.Contains(line, `"good":1`) {
		t.Errorf("missing well formed pair: %s", line)
	}
	if strings.Contains(line, "bad-key") || strings.Contains(line, "dangling") {
		t.Errorf("malformed pairs should be skipped: %s", line)
	}
}

func TestNewSecurityLogger(t *testing.T) {
	if NewSecurityLogger() == nil {
		t.Error("expected non-nil security logger")
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"under limit unchanged", "short", 10, "short"},
		{"at limit unchanged", "exactly10!", 10, "exactly10!"},
		{"over limit gets ellipsis", "this is a longer string", 10, "this is a ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

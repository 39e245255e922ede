// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package config loads and validates the Punchsync configuration from
// layered sources: struct defaults, an optional YAML file, and environment
// variables, in ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/punchsync/internal/models"
)

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Source   SourceConfig   `koanf:"source"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Events   EventsConfig   `koanf:"events"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig holds the operator HTTP API settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitRPM    int           `koanf:"rate_limit_rpm"`
}

// SourceConfig describes the attendance source and its transport.
//
// Mode selects the transport: "api" polls the HTTP transaction API,
// "device" opens a direct terminal socket, and "auto" picks device mode
// when the port is the conventional terminal port (4370), API otherwise.
type SourceConfig struct {
	Mode            string        `koanf:"mode"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timezone        string        `koanf:"timezone"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	Token           string        `koanf:"token"`
	CommKey         int           `koanf:"comm_key"`
	CustomAttribute string        `koanf:"custom_attribute"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	PageLimit       int           `koanf:"page_limit"`
	UserAgent       string        `koanf:"user_agent"`
}

// deviceDefaultPort is the conventional attendance terminal port used by
// mode "auto" to infer a direct device connection.
const deviceDefaultPort = 4370

// ResolvedMode returns the effective source mode after "auto" inference.
func (s SourceConfig) ResolvedMode() models.SourceMode {
	switch strings.ToLower(s.Mode) {
	case "device":
		return models.SourceModeDevice
	case "api":
		return models.SourceModeAPI
	default:
		if s.Port == deviceDefaultPort {
			return models.SourceModeDevice
		}
		return models.SourceModeAPI
	}
}

// Address returns the host:port pair of the source.
func (s SourceConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SyncConfig drives the orchestrator and scheduler.
type SyncConfig struct {
	Enabled           bool `koanf:"enabled"`
	FrequencySeconds  int  `koanf:"frequency_seconds"`
	OverlapSeconds    int  `koanf:"overlap_seconds"`
	DedupeDeviceScope bool `koanf:"dedupe_device_scope"`

	// Timestamp sanity bounds: punches further in the future than
	// RejectFutureMinutes or older than MaxAgeDays count as failed
	// instead of persisting.
	RejectFutureMinutes int `koanf:"reject_future_minutes"`
	MaxAgeDays          int `koanf:"max_age_days"`
}

// Overlap returns the negative window overlap applied below the watermark.
func (s SyncConfig) Overlap() time.Duration {
	return time.Duration(s.OverlapSeconds) * time.Second
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()

	// RetentionCheckInterval is how often the janitor sweeps expired
	// sync run history. Zero disables the sweep.
	RetentionCheckInterval time.Duration `koanf:"retention_check_interval"`
}

// SecurityConfig holds operator API authentication settings.
type SecurityConfig struct {
	JWTSecret            string        `koanf:"jwt_secret"`
	SessionTimeout       time.Duration `koanf:"session_timeout"`
	OperatorUsername     string        `koanf:"operator_username"`
	OperatorPasswordHash string        `koanf:"operator_password_hash"` // bcrypt
	EncryptionKey        string        `koanf:"encryption_key"`         // base64, seals the source token at rest
	LoginRateLimitRPS    float64       `koanf:"login_rate_limit_rps"`
	LoginRateLimitBurst  int           `koanf:"login_rate_limit_burst"`
}

// EventsConfig controls publishing of created attendance events to NATS
// JetStream. Requires a binary built with the nats tag; otherwise the
// publisher is an inert stub and Enabled must stay false.
type EventsConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"nats_url"`
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port"`
	StoreDir     string `koanf:"store_dir"`
	Stream       string `koanf:"stream"`
	Subject      string `koanf:"subject"`
	WALDir       string `koanf:"wal_dir"`
}

// AuditConfig controls the audit sink retention.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	RetentionDays   int           `koanf:"retention_days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Frequency bounds supported by the scheduler.
const (
	MinFrequencySeconds = 10
	MaxFrequencySeconds = 3600
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateSource() error {
	switch strings.ToLower(c.Source.Mode) {
	case "", "auto", "api", "device":
	default:
		return fmt.Errorf("SOURCE_MODE must be auto, api, or device, got %q", c.Source.Mode)
	}
	if c.Source.Port != 0 && (c.Source.Port < 1 || c.Source.Port > 65535) {
		return fmt.Errorf("SOURCE_PORT must be between 1 and 65535, got %d", c.Source.Port)
	}
	if c.Source.PageLimit < 1 {
		return fmt.Errorf("SOURCE_PAGE_LIMIT must be at least 1, got %d", c.Source.PageLimit)
	}
	if c.Source.Timezone != "" {
		if _, err := time.LoadLocation(c.Source.Timezone); err != nil {
			return fmt.Errorf("SOURCE_TIMEZONE is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.FrequencySeconds < MinFrequencySeconds || c.Sync.FrequencySeconds > MaxFrequencySeconds {
		return fmt.Errorf("SYNC_FREQUENCY_SECONDS must be between %d and %d, got %d",
			MinFrequencySeconds, MaxFrequencySeconds, c.Sync.FrequencySeconds)
	}
	if c.Sync.OverlapSeconds < 0 || c.Sync.OverlapSeconds > 300 {
		return fmt.Errorf("SYNC_OVERLAP_SECONDS must be between 0 and 300, got %d", c.Sync.OverlapSeconds)
	}
	if c.Sync.RejectFutureMinutes < 0 {
		return fmt.Errorf("SYNC_REJECT_FUTURE_MINUTES must not be negative, got %d", c.Sync.RejectFutureMinutes)
	}
	if c.Sync.MaxAgeDays < 1 {
		return fmt.Errorf("SYNC_MAX_AGE_DAYS must be at least 1, got %d", c.Sync.MaxAgeDays)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("SECURITY_JWT_SECRET must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Security.SessionTimeout < time.Minute {
		return fmt.Errorf("SECURITY_SESSION_TIMEOUT must be at least 1m, got %s", c.Security.SessionTimeout)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.URL == "" && !c.Events.Embedded {
		return fmt.Errorf("EVENTS_NATS_URL is required when EVENTS_ENABLED=true and no embedded server is configured")
	}
	if c.Events.Stream == "" || c.Events.Subject == "" {
		return fmt.Errorf("EVENTS_STREAM and EVENTS_SUBJECT are required when EVENTS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// SourceLocation returns the configured source timezone, or time.Local when
// unset. Validate guarantees the name loads.
func (c *Config) SourceLocation() *time.Location {
	if c.Source.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Source.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ServerConfigured reports whether the source connection parameters are
// complete enough to attempt a sync.
func (c *Config) ServerConfigured() bool {
	return c.Source.Host != "" && c.Source.Port != 0
}

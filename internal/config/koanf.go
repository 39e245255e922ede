// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/punchsync/config.yaml",
	"/etc/punchsync/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first and are overridden by the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8391,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitRPM:    120,
		},
		Source: SourceConfig{
			Mode:            "auto",
			Host:            "",
			Port:            0,
			Timezone:        "",
			CustomAttribute: "",
			RequestTimeout:  30 * time.Second,
			PageLimit:       100,
			UserAgent:       "punchsync/1.0",
		},
		Sync: SyncConfig{
			Enabled:             false,
			FrequencySeconds:    300,
			OverlapSeconds:      5,
			DedupeDeviceScope:   false,
			RejectFutureMinutes: 5,
			MaxAgeDays:          90,
		},
		Database: DatabaseConfig{
			Path:                   "/data/punchsync.duckdb",
			MaxMemory:              "1GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			RetentionCheckInterval: 24 * time.Hour,
		},
		Security: SecurityConfig{
			JWTSecret:           "",
			SessionTimeout:      24 * time.Hour,
			LoginRateLimitRPS:   1,
			LoginRateLimitBurst: 5,
		},
		Events: EventsConfig{
			Enabled:      false,
			URL:          "nats://127.0.0.1:4222",
			Embedded:     false,
			EmbeddedHost: "127.0.0.1",
			EmbeddedPort: 4222,
			StoreDir:     "/data/nats/jetstream",
			Stream:       "ATTENDANCE",
			Subject:      "attendance.event.created",
			WALDir:       "/data/wal",
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   90,
			CleanupInterval: 12 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in struct defaults
//  2. Config file: optional YAML file (if found)
//  3. Environment variables: highest precedence
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SYNC_FREQUENCY_SECONDS -> sync.frequency_seconds and so on, via the
	// explicit mapping table; unmapped variables are ignored.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches CONFIG_PATH, then the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as
// plain strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return "" and are skipped, keeping stray variables out of
// the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"server_host":             "server.host",
		"server_port":             "server.port",
		"server_read_timeout":     "server.read_timeout",
		"server_write_timeout":    "server.write_timeout",
		"server_shutdown_timeout": "server.shutdown_timeout",
		"cors_origins":            "server.cors_origins",
		"rate_limit_rpm":          "server.rate_limit_rpm",

		// Source mappings
		"source_mode":             "source.mode",
		"source_host":             "source.host",
		"source_port":             "source.port",
		"source_timezone":         "source.timezone",
		"source_username":         "source.username",
		"source_password":         "source.password",
		"source_token":            "source.token",
		"source_comm_key":         "source.comm_key",
		"source_custom_attribute": "source.custom_attribute",
		"source_request_timeout":  "source.request_timeout",
		"source_page_limit":       "source.page_limit",
		"source_user_agent":       "source.user_agent",

		// Sync mappings
		"sync_enabled":               "sync.enabled",
		"sync_frequency_seconds":     "sync.frequency_seconds",
		"sync_overlap_seconds":       "sync.overlap_seconds",
		"sync_dedupe_device_scope":   "sync.dedupe_device_scope",
		"sync_reject_future_minutes": "sync.reject_future_minutes",
		"sync_max_age_days":          "sync.max_age_days",

		// Database mappings
		"duckdb_path":                     "database.path",
		"duckdb_max_memory":               "database.max_memory",
		"duckdb_threads":                  "database.threads",
		"duckdb_retention_check_interval": "database.retention_check_interval",

		// Security mappings
		"security_jwt_secret":             "security.jwt_secret",
		"security_session_timeout":        "security.session_timeout",
		"security_operator_username":      "security.operator_username",
		"security_operator_password_hash": "security.operator_password_hash",
		"security_encryption_key":         "security.encryption_key",
		"security_login_rate_limit_rps":   "security.login_rate_limit_rps",
		"security_login_rate_limit_burst": "security.login_rate_limit_burst",

		// Events mappings
		"events_enabled":       "events.enabled",
		"events_nats_url":      "events.nats_url",
		"events_embedded":      "events.embedded",
		"events_embedded_host": "events.embedded_host",
		"events_embedded_port": "events.embedded_port",
		"events_store_dir":     "events.store_dir",
		"events_stream":        "events.stream",
		"events_subject":       "events.subject",
		"events_wal_dir":       "events.wal_dir",

		// Audit mappings
		"audit_enabled":          "audit.enabled",
		"audit_retention_days":   "audit.retention_days",
		"audit_cleanup_interval": "audit.cleanup_interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Metrics mappings
		"metrics_enabled": "metrics.enabled",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package wal

import "time"

// Config holds the durable buffer settings. The directory comes from the
// events.wal_dir key of the application config; everything else defaults
// to values sized for attendance workloads, which are small (a sync run
// rarely produces more than a few hundred created events).
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem, not tmpfs.
	Path string

	// SyncWrites forces fsync after every write. Disable only for tests.
	SyncWrites bool

	// RetryInterval is the time between drain passes.
	RetryInterval time.Duration

	// MaxRetries is the publish attempt limit per entry. Entries that
	// exhaust it are dropped and counted.
	MaxRetries int

	// RetryBackoff is the initial per-entry backoff, doubled per attempt
	// and capped at five minutes.
	RetryBackoff time.Duration

	// CompactInterval is the time between cleanup passes over confirmed
	// and expired entries.
	CompactInterval time.Duration

	// EntryTTL bounds how long an unconfirmed entry is kept. A notification
	// older than this has lost its value; the record itself is already
	// safe in the attendance store.
	EntryTTL time.Duration

	// BadgerDB tuning.
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// Compression enables Snappy compression for stored entries.
	Compression bool

	// GCRatio is the BadgerDB value log garbage collection ratio.
	GCRatio float64

	// CloseTimeout bounds graceful shutdown of the database.
	CloseTimeout time.Duration
}

// DefaultConfig returns durability-first defaults. Path must still be set;
// use ConfigForDir.
func DefaultConfig() Config {
	return Config{
		SyncWrites:       true,
		RetryInterval:    30 * time.Second,
		MaxRetries:       100,
		RetryBackoff:     5 * time.Second,
		CompactInterval:  1 * time.Hour,
		EntryTTL:         72 * time.Hour,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2, // BadgerDB minimum
		Compression:      true,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// ConfigForDir returns the default configuration rooted at dir.
func ConfigForDir(dir string) Config {
	cfg := DefaultConfig()
	cfg.Path = dir
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "storage directory is required"}
	}
	if c.RetryInterval < time.Second {
		return &ConfigError{Field: "RetryInterval", Message: "must be at least 1 second"}
	}
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "MaxRetries", Message: "must be at least 1"}
	}
	if c.RetryBackoff < time.Second {
		return &ConfigError{Field: "RetryBackoff", Message: "must be at least 1 second"}
	}
	if c.CompactInterval < time.Minute {
		return &ConfigError{Field: "CompactInterval", Message: "must be at least 1 minute"}
	}
	if c.EntryTTL < time.Hour {
		return &ConfigError{Field: "EntryTTL", Message: "must be at least 1 hour"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError reports an invalid buffer setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "WAL config error: " + e.Field + ": " + e.Message
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package events

import (
	"time"

	"github.com/tomtom215/punchsync/internal/config"
)

// PublisherConfig tunes the NATS connection used for publishing.
type PublisherConfig struct {
	// URL is the NATS server address, e.g. nats://127.0.0.1:4222.
	URL string

	// MaxReconnects limits reconnection attempts. -1 retries forever.
	MaxReconnects int

	// ReconnectWait is the delay between reconnection attempts.
	ReconnectWait time.Duration

	// ReconnectBuffer is the client-side buffer for messages written
	// while disconnected, in bytes.
	ReconnectBuffer int

	// EnableTrackMsgID stamps each message with an ID header so
	// JetStream can deduplicate redeliveries.
	EnableTrackMsgID bool
}

// DefaultPublisherConfig returns publisher settings for url.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// ServerConfig tunes the optional embedded NATS server.
type ServerConfig struct {
	Host string
	Port int

	// StoreDir is the JetStream storage directory.
	StoreDir string

	JetStreamMaxMemory int64
	JetStreamMaxStore  int64
}

// DefaultServerConfig returns embedded server settings storing under dir.
func DefaultServerConfig(dir string) ServerConfig {
	return ServerConfig{
		Host:               "127.0.0.1",
		Port:               4222,
		StoreDir:           dir,
		JetStreamMaxMemory: 256 << 20,
		JetStreamMaxStore:  2 << 30,
	}
}

// StreamConfig describes the JetStream stream holding attendance events.
type StreamConfig struct {
	Name     string
	Subjects []string

	// MaxAge bounds event retention. Consumers lagging past this lose
	// events; the attendance store remains the system of record.
	MaxAge time.Duration

	MaxBytes int64
	MaxMsgs  int64

	// DuplicateWindow is the horizon for message ID deduplication.
	DuplicateWindow time.Duration

	Replicas int
}

// DefaultStreamConfig returns the attendance event stream settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "ATTENDANCE_EVENTS",
		Subjects:        []string{"attendance.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        10 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfigFrom maps the application events config onto publisher
// settings, falling back to defaults for unset fields.
func PublisherConfigFrom(cfg *config.EventsConfig) PublisherConfig {
	url := cfg.URL
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}
	return DefaultPublisherConfig(url)
}

// ServerConfigFrom maps the application events config onto embedded server
// settings.
func ServerConfigFrom(cfg *config.EventsConfig) ServerConfig {
	out := DefaultServerConfig(cfg.StoreDir)
	if cfg.EmbeddedHost != "" {
		out.Host = cfg.EmbeddedHost
	}
	if cfg.EmbeddedPort != 0 {
		out.Port = cfg.EmbeddedPort
	}
	return out
}

// StreamConfigFrom maps the application events config onto stream settings.
func StreamConfigFrom(cfg *config.EventsConfig) StreamConfig {
	out := DefaultStreamConfig()
	if cfg.Stream != "" {
		out.Name = cfg.Stream
	}
	if cfg.Subject != "" {
		out.Subjects = []string{cfg.Subject}
	}
	return out
}

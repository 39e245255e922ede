// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package main is the entry point for the Punchsync server application.
//
// Punchsync is a self-hosted attendance transaction sync engine. It pulls
// raw punch events from a biometric terminal (direct device socket or
// vendor HTTP API), classifies each punch as IN or OUT, resolves the
// punching identity to a worker record, and persists the result exactly
// once. An operator REST API exposes status, dry-run previews, manual
// triggers, and maintenance sweeps.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Initialize DuckDB with the attendance schema and dedup index
//  3. Source: Build the device or API client from the resolved source mode
//  4. Identity: Resolver mapping punch codes to workers via the directory tables
//  5. Audit: DuckDB-backed trail for run outcomes and operator actions
//  6. Sync Manager: Pipeline that fetches, classifies, resolves, dedupes, and persists punches
//  7. Scheduler: Recurring trigger derived from SYNC_FREQUENCY_SECONDS
//  8. Authentication: JWT manager and single-operator credential verifier
//  9. NATS (optional): JetStream publishing of created attendance events
//  10. HTTP Server: Chi router with the operator API and Swagger documentation
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (SECTION_KEY names, e.g. SOURCE_HOST)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// Connecting to a terminal directly:
//   - SOURCE_MODE=device (or auto, which picks device when SOURCE_PORT=4370)
//   - SOURCE_HOST, SOURCE_PORT: terminal address
//   - SOURCE_COMM_KEY: device communication key, if one is set on the terminal
//
// Polling a vendor HTTP API:
//   - SOURCE_MODE=api
//   - SOURCE_HOST, SOURCE_PORT: API endpoint
//   - SOURCE_USERNAME + SOURCE_PASSWORD, or SOURCE_TOKEN: API credentials
//
// For the operator API:
//   - SECURITY_JWT_SECRET: 32+ character secret for token signing
//   - SECURITY_OPERATOR_USERNAME: Operator username
//   - SECURITY_OPERATOR_PASSWORD_HASH: bcrypt hash of the operator password
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server      # Enable NATS JetStream
//	go build -tags "wal" ./cmd/server       # Enable BadgerDB WAL
//	go build -tags "nats,wal" ./cmd/server  # Enable both
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Lets an in-flight sync run stop cleanly at the next event boundary
//   - Shuts down NATS components if enabled
//
// # Example Usage
//
// Device mode against a terminal on the local network:
//
//	export SOURCE_MODE=device
//	export SOURCE_HOST=192.168.1.201
//	export SOURCE_PORT=4370
//	export SOURCE_TIMEZONE=America/New_York
//	export SYNC_ENABLED=true
//	export SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export SECURITY_OPERATOR_USERNAME=admin
//	export SECURITY_OPERATOR_PASSWORD_HASH='$2a$10$...'
//	./punchsync
//
// API mode against a vendor attendance endpoint:
//
//	export SOURCE_MODE=api
//	export SOURCE_HOST=attendance.example.com
//	export SOURCE_PORT=443
//	export SOURCE_TOKEN=your-api-token
//	export SYNC_ENABLED=true
//	./punchsync
//
// With event publishing (built with -tags nats,wal):
//
//	export EVENTS_ENABLED=true
//	export EVENTS_EMBEDDED=true
//	export EVENTS_STORE_DIR=/data/nats/jetstream
//	export EVENTS_WAL_DIR=/data/wal
//	./punchsync
//
// Docker (device mode):
//
//	docker run -d \
//	  -e SOURCE_MODE=device \
//	  -e SOURCE_HOST=192.168.1.201 \
//	  -e SOURCE_PORT=4370 \
//	  -e SYNC_ENABLED=true \
//	  -e SECURITY_JWT_SECRET=change-me-to-32-plus-characters \
//	  -e SECURITY_OPERATOR_USERNAME=admin \
//	  -e SECURITY_OPERATOR_PASSWORD_HASH='$2a$10$...' \
//	  -p 8391:8391 \
//	  ghcr.io/tomtom215/punchsync
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/punchsync/docs" // Import generated swagger docs
	"github.com/tomtom215/punchsync/internal/api"
	"github.com/tomtom215/punchsync/internal/audit"
	"github.com/tomtom215/punchsync/internal/auth"
	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/identity"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/scheduler"
	"github.com/tomtom215/punchsync/internal/source"
	"github.com/tomtom215/punchsync/internal/supervisor"
	"github.com/tomtom215/punchsync/internal/supervisor/services"
	"github.com/tomtom215/punchsync/internal/sync"
	ws "github.com/tomtom215/punchsync/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Punchsync with supervisor tree")

	// Log configuration status - the resolved mode decides which client
	// talks to the source terminal
	logging.Info().
		Str("source_mode", string(cfg.Source.ResolvedMode())).
		Str("source_address", cfg.Source.Address()).
		Str("timezone", cfg.Source.Timezone).
		Str("db_path", cfg.Database.Path).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Int("frequency_seconds", cfg.Sync.FrequencySeconds).
		Msg("Configuration loaded")

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Build the source client for the configured terminal. Probe failures
	// are not fatal: the terminal may come up later, and every scheduled
	// run retries the connection.
	src := source.New(&cfg.Source, cfg.SourceLocation())
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if result, err := src.Probe(probeCtx); err != nil {
		logging.Warn().Err(err).Msg("Source terminal unreachable (will retry on schedule)")
	} else {
		logging.Info().
			Str("address", result.Address).
			Int64("latency_ms", result.LatencyMS).
			Msg("Source terminal reachable")
	}
	probeCancel()

	// Identity resolver maps punch codes onto worker records; the custom
	// attribute enables the optional third lookup fallback
	resolver := identity.NewResolver(db, cfg.Source.CustomAttribute)

	// Token sealer for registered device credentials. NewTokenSealer
	// returns nil when no key is configured; assign to the interface only
	// when non-nil so the manager sees a true nil.
	var sealer sync.TokenSealer
	tokenSealer, err := auth.NewTokenSealer(cfg.Security.EncryptionKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token sealer")
	}
	if tokenSealer != nil {
		sealer = tokenSealer
		logging.Info().Msg("Source credential sealing enabled")
	} else {
		logging.Warn().Msg("Token sealing disabled (SECURITY_ENCRYPTION_KEY empty). Registered device tokens are stored as-is.")
	}

	// Initialize the DuckDB-backed audit trail. CreateTable failures
	// disable auditing instead of blocking startup; the sync pipeline
	// runs without it.
	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		auditStore := audit.NewDuckDBStore(db.Conn())
		if err := auditStore.CreateTable(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Failed to create audit events table - audit logging disabled")
		} else {
			auditConfig := audit.DefaultConfig()
			auditConfig.RetentionDays = cfg.Audit.RetentionDays
			auditConfig.CleanupInterval = cfg.Audit.CleanupInterval
			auditLogger = audit.NewLogger(auditStore, auditConfig)
			defer func() {
				if err := auditLogger.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing audit logger")
				}
			}()
			logging.Info().
				Int("retention_days", auditConfig.RetentionDays).
				Msg("Audit logging initialized with DuckDB persistence")
		}
	} else {
		logging.Info().Msg("Audit logging disabled (AUDIT_ENABLED=false)")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Create WebSocket hub for live run-progress broadcasts (before the
	// sync manager, which publishes frames into it)
	wsHub := ws.NewHub()

	// Create sync manager (no longer started here - supervisor will start it)
	syncManager := sync.NewManager(cfg, src, resolver, db, auditLogger, sealer)
	syncManager.SetProgressSink(wsHub)

	// Install a previously registered source token on the client, so an
	// operator rotation survives restarts. Failure is not fatal: the
	// client keeps the config token and the re-auth path recovers.
	if err := syncManager.RestoreSourceToken(ctx); err != nil {
		logging.Warn().Err(err).Msg("Stored source token not restored, using config token")
	}

	// Scheduler fires EnqueueRun at the configured cadence; the manager's
	// single-slot queue gives scheduled and manual triggers the same gate
	sched := scheduler.New(syncManager, cfg.Sync.FrequencySeconds, cfg.Sync.Enabled)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	operator, err := auth.NewOperator(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize operator credentials")
	}
	logging.Info().Str("operator", cfg.Security.OperatorUsername).Msg("JWT authentication enabled")

	middleware := auth.NewMiddleware(jwtManager, &cfg.Security)
	defer middleware.Close()

	handler := api.NewHandler(db, syncManager, cfg, jwtManager, operator, wsHub, auditLogger)

	// Initialize NATS event publishing (optional - requires build with -tags nats)
	// Wires the event publisher into the sync manager so persisted records
	// are announced on the stream
	natsComponents, err := InitNATS(cfg, syncManager)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS")
	}

	// Add NATS to supervisor tree (if enabled)
	// Note: NATS components are started/managed by supervisor, not manually
	AddNATSToSupervisor(tree, natsComponents)

	// The WAL drainer runs inside the tree; the BadgerDB handle closes
	// only after the tree has fully stopped
	defer natsComponents.CloseWAL()

	router := api.NewRouter(handler, middleware)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	if auditLogger != nil {
		tree.AddDataService(auditLogger)
		logging.Info().Msg("Audit retention loop added to supervisor tree")
	}
	tree.AddDataService(database.NewJanitor(db, cfg.Database.RetentionCheckInterval))

	// Messaging layer services. The sync manager and scheduler implement
	// suture.Service directly; only the hub needs a wrapper.
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddMessagingService(syncManager)
	tree.AddMessagingService(sched)
	logging.Info().Msg("WebSocket hub, sync manager, and scheduler added to supervisor tree")

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

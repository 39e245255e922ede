// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package main implements the Punchsync server with supervisor tree architecture.

# Supervisor Tree Structure

The application uses the suture library to manage service lifecycles in a
hierarchical supervision tree. Services are grouped into layers, and layers
stop in reverse order of registration, so the API layer drains before the
messaging layer and the data layer outlives both:

	RootSupervisor "punchsync"
	├── data-layer (supervisor)
	│   ├── WALDrainService (optional, -tags wal,nats)
	│   ├── AuditLogger (retention loop, AUDIT_ENABLED=true)
	│   └── Janitor (sync run history sweep)
	├── messaging-layer (supervisor)
	│   ├── NATSComponentsService (optional, -tags nats)
	│   ├── WebSocketHubService
	│   ├── SyncManager
	│   └── Scheduler
	└── api-layer (supervisor)
	    └── HTTPServerService

Each service implements the suture.Service interface with a Serve(ctx) method
that blocks until the context is canceled. Suture restarts crashed services
with exponential backoff and escalates to the parent supervisor after
repeated failures.

The layering encodes two shutdown invariants. First, the HTTP server stops
before the sync manager, so no API call can start a run while the pipeline
is winding down. Second, the WAL drainer stops after the NATS publisher, so
events that fail to publish during shutdown stay pending in BadgerDB and are
recovered on the next boot.

# Service Initialization Order

 1. Configuration (Koanf v2: env vars, config file, defaults)
 2. Database (DuckDB with attendance schema and dedup index)
 3. Source client (device socket or vendor API, per SOURCE_MODE)
 4. Identity resolver (punch code to worker mapping)
 5. Audit trail (DuckDB store plus async writer)
 6. Supervisor tree
 7. WebSocket hub and sync manager
 8. Scheduler
 9. JWT manager, operator credentials, auth middleware
 10. NATS and WAL components (build tag gated)
 11. HTTP server (Chi router, Swagger UI)

# Configuration

All settings come from environment variables or config.yaml. The core set:

	SOURCE_MODE        auto | device | api
	SOURCE_HOST        Terminal or API host
	SOURCE_PORT        4370 for device mode, HTTP port for api mode
	SOURCE_TIMEZONE    IANA zone of the terminal clock (default UTC)
	SYNC_ENABLED       Enable the recurring scheduler (default false)
	SYNC_FREQUENCY_SECONDS  Seconds between scheduled runs (default 300)
	DUCKDB_PATH        Database file path (default /data/punchsync.duckdb)
	SERVER_PORT        HTTP listen port (default 8391)
	LOG_LEVEL          debug | info | warn | error
	LOG_FORMAT         json | console

Operator API authentication (required):

	SECURITY_JWT_SECRET              32+ character signing secret
	SECURITY_OPERATOR_USERNAME       Operator login name
	SECURITY_OPERATOR_PASSWORD_HASH  bcrypt hash of the operator password

Event publishing (optional):

	EVENTS_ENABLED     Publish attendance.event.created to JetStream
	EVENTS_NATS_URL    External NATS server URL
	EVENTS_EMBEDDED    Run an in-process NATS server instead
	EVENTS_WAL_DIR     BadgerDB write-ahead log directory

# Build Tags

The default build has no NATS or BadgerDB dependency. Tags add services to
the tree:

	nats  NATSComponentsService joins the messaging layer
	wal   WALDrainService joins the data layer (requires nats)

Builds without a tag compile the corresponding stub: InitNATS and InitWAL
return nil components and the supervisor tree is unchanged.

# Signal Handling

On SIGINT or SIGTERM the server performs a graceful shutdown:

 1. The root context is canceled
 2. The HTTP server stops accepting connections and drains in-flight
    requests (SERVER_SHUTDOWN_TIMEOUT, default 10s)
 3. The scheduler stops firing and the sync manager finishes or abandons
    the current run at the next event boundary
 4. The WebSocket hub closes client connections
 5. NATS publishers flush and the connection closes
 6. The WAL drainer and audit writer stop, then BadgerDB and DuckDB close

Services that fail to stop within the shutdown timeout are reported by name
before exit.

# Usage Examples

Minimal development run against a device on the LAN:

	SOURCE_HOST=192.168.1.201 SOURCE_PORT=4370 \
	SECURITY_JWT_SECRET=$(openssl rand -base64 32) \
	SECURITY_OPERATOR_USERNAME=admin \
	SECURITY_OPERATOR_PASSWORD_HASH='$2a$10$...' \
	go run ./cmd/server

Full build with event publishing and the write-ahead log:

	go build -tags "nats,wal" -o punchsync ./cmd/server
	EVENTS_ENABLED=true EVENTS_EMBEDDED=true EVENTS_WAL_DIR=/data/wal ./punchsync

# API Documentation

The operator API is documented with Swagger annotations and served at
/swagger/index.html. Endpoint categories:

  - Core: health, version, run history, attendance queries
  - Auth: login, refresh, logout
  - Source: terminal probe, device registration
  - Sync: manual trigger, dry-run preview, run status
  - Maintenance: re-pair sweep, purge, dedup audit
  - Realtime: WebSocket run progress

# See Also

  - internal/config: Koanf loading and validation
  - internal/supervisor: tree construction and service wrappers
  - internal/sync: the fetch, classify, resolve, persist pipeline
  - internal/api: HTTP handlers and router
*/
package main

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package supervisor builds the suture v4 supervision tree that owns every
long-running service in Punchsync.

Services are grouped into three child supervisors under one root. The grouping
is the failure and shutdown boundary: a crash restarts within its layer, and
layers stop in reverse registration order, so the API drains before the sync
pipeline and the data layer outlives both.

	RootSupervisor ("punchsync")
	├── DataSupervisor ("data-layer")
	│   ├── WALDrainService (build tag: wal)
	│   ├── audit retention (audit.Logger, native suture.Service)
	│   └── run history janitor (database.Janitor, native suture.Service)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── NATSComponentsService (build tag: nats)
	│   ├── WebSocketHubService
	│   ├── sync manager (sync.Manager, native suture.Service)
	│   └── scheduler (scheduler.Scheduler, native suture.Service)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Components whose lifecycle already matches suture.Service (Serve plus String)
are added to the tree directly. The services subpackage wraps only the
components that expose a different lifecycle, such as http.Server's blocking
ListenAndServe or the WAL drainer's Start/Stop pair.

# Restart Behavior

Suture restarts a crashed service immediately and tracks failures with an
exponentially decaying counter. Once the counter passes TreeConfig's
FailureThreshold the layer backs off for FailureBackoff before trying again;
a layer that keeps failing escalates to the root. A service that returns nil
from Serve stopped on purpose and is not restarted.

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,
	    FailureDecay:     30.0,
	    FailureBackoff:   15 * time.Second,
	    ShutdownTimeout:  10 * time.Second,
	}

DefaultTreeConfig returns these values; zero fields in a caller-supplied
config fall back to them.

# Usage

	tree, err := supervisor.NewSupervisorTree(slog.Default(), supervisor.DefaultTreeConfig())
	if err != nil {
	    log.Fatal(err)
	}

	tree.AddDataService(auditLogger)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(syncManager)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	// ... cancel ctx to stop ...
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
	    log.Printf("supervisor: %v", err)
	}

Root supervision events are logged through slog via the sutureslog hook, so
service starts, crashes, and backoffs appear in the structured log stream.

# What Is Not Supervised

DuckDB is an embedded library, not a process; the database package owns its
connection and a failure there needs a process restart regardless. The
attendance terminal connection is likewise not a tree member: the sync
manager opens it per fetch, and the source client's circuit breaker handles
terminal outages.

# Debugging Shutdown Hangs

When a layer misses its shutdown timeout, UnstoppedServiceReport names the
services still running. The usual culprits are goroutines ignoring context
cancellation or network reads without deadlines.

See internal/supervisor/services for the wrapper set and
github.com/thejerf/suture/v4 for the underlying semantics.
*/
package supervisor

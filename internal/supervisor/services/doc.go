// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package services adapts components with foreign lifecycles to suture.Service.

Suture wants one blocking Serve(ctx) per service. Components that already
look like that (the sync manager, the scheduler, the audit logger, the run
history janitor) join the tree directly; this package wraps the rest:

  - HTTPServerService: runs http.Server.ListenAndServe on a goroutine,
    drains with Shutdown under a bounded timeout when the context ends.
  - WebSocketHubService: delegates to the hub's RunWithContext loop, which
    closes every client on shutdown.
  - WALDrainService (build tag wal): translates the drainer's Start/Stop
    pair, stopping the retry and compaction loop before BadgerDB closes.
  - NATSComponentsService (build tag nats): starts the embedded server,
    stream initializer, and publisher as one unit and shuts them down
    together.

Each wrapper follows the same translation:

	func (s *SomeService) Serve(ctx context.Context) error {
	    // start the wrapped component, fail fast on startup errors
	    <-ctx.Done()
	    // stop the wrapped component, bounded by a shutdown timeout
	    return ctx.Err()
	}

Returning ctx.Err() after a requested shutdown tells suture the stop was
orderly; any other error marks a crash and triggers a restart. Every wrapper
implements fmt.Stringer so supervision log lines name the service
("http-server", "websocket-hub", "wal-drainer", "nats-components").

Wrappers hold no state beyond the wrapped component and a timeout, and a
given wrapper instance must be served at most once at a time; the supervisor
guarantees that.

See internal/supervisor for the tree these services are added to.
*/
package services

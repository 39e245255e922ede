// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package testinfra provides test infrastructure for integration testing.
//
// This package uses testcontainers-go to manage Docker containers for
// integration tests, plus an in-process fake of the vendor attendance API
// so the real HTTP client can be exercised without a physical terminal.
//
// # NATS Container
//
// NATSContainer runs a real NATS server with JetStream for event
// publishing tests:
//
//	func TestPublish(t *testing.T) {
//	    ctx := context.Background()
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nats.Container)
//
//	    pub, err := events.NewPublisher(events.PublisherConfig{URL: nats.URL})
//	    // ...
//	}
//
// # Fake Terminal
//
// FakeTerminal is an httptest server speaking the vendor transaction API:
// token registration at /api-token-auth/ and the paginated listing at
// /iclock/api/transactions/. Tests seed it with punches and point an API
// source client at its address.
//
// # Benefits Over Mocks
//
// Running against a real broker and a protocol-faithful fake validates
// actual wire contracts instead of mock expectations, so client changes
// that break pagination, auth, or stream setup fail here first.
//
// # CI Considerations
//
// Container tests require Docker and are skipped gracefully when the
// daemon is unavailable. First runs may download images; subsequent runs
// use the local cache. The fake terminal needs no Docker at all.
package testinfra

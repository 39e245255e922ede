// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
Package auth secures the operator API and seals the source credential.

Punchsync has a single operator account, configured as a username plus a
bcrypt password hash. A successful login issues an HMAC-SHA256 session
token; every endpoint except health, metrics and the swagger UI requires
that token as a bearer credential.

Key Components:

  - JWTManager: session token generation and validation (HS256)
  - Operator: bcrypt verification of the configured operator credentials
  - TokenSealer: AES-GCM encryption of the source API token at rest
  - Middleware: bearer authentication, role checks, login throttling
  - RateLimiter: token bucket limiter keyed by client IP

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	operator, err := auth.NewOperator(&cfg.Security)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(jwtManager, &cfg.Security)

	// Login endpoint: throttled per IP, verifies credentials, issues token.
	mux.HandleFunc("/api/v1/auth/login", mw.LoginRateLimit(loginHandler))

	// Everything else: bearer token required.
	mux.HandleFunc("/api/v1/status", mw.Authenticate(statusHandler))

Token Sealing:

The source API token obtained during token registration is persisted in
DuckDB. When security.encryption_key is set, TokenSealer encrypts it with
a key derived via HKDF-SHA256 before it reaches the store; with no key
configured the sealer is an inert nil and the token is stored as-is.

Thread Safety:

All components are safe for concurrent use. JWTManager, Operator and
TokenSealer are read-only after construction; RateLimiter guards its
per-IP map with a mutex.
*/
package auth

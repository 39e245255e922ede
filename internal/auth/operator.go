// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/punchsync/internal/config"
)

// RoleAdmin is the role granted to the configured operator. Punchsync has
// a single account, so every issued session carries it.
const RoleAdmin = "admin"

// bcryptCost is used when hashing new passwords. Verification reads the
// cost from the stored hash, so existing hashes survive a cost change.
const bcryptCost = 12

// ErrInvalidCredentials is returned by Verify when the username or
// password does not match the configured operator account.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Operator verifies login credentials against the single account from
// configuration. The password is configured as a bcrypt hash
// (security.operator_password_hash); plaintext never touches disk.
type Operator struct {
	username     string
	passwordHash []byte
}

// NewOperator builds the credential verifier from the security
// configuration. The hash is parsed once at startup so a malformed value
// fails fast instead of rejecting every login at runtime.
func NewOperator(cfg *config.SecurityConfig) (*Operator, error) {
	if cfg.OperatorUsername == "" {
		return nil, fmt.Errorf("security.operator_username is required")
	}
	if cfg.OperatorPasswordHash == "" {
		return nil, fmt.Errorf("security.operator_password_hash is required")
	}

	hash := []byte(cfg.OperatorPasswordHash)
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("security.operator_password_hash is not a bcrypt hash: %w", err)
	}

	return &Operator{
		username:     cfg.OperatorUsername,
		passwordHash: hash,
	}, nil
}

// Verify checks a username/password pair. The username comparison is
// constant time and the password goes through bcrypt; both comparisons
// run regardless of which one fails, so the rejection paths cost the
// same.
func (o *Operator) Verify(username, password string) error {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(o.username)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(o.passwordHash, []byte(password)) == nil

	if !usernameOK || !passwordOK {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for the
// security.operator_password_hash setting.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sealing errors
var (
	// ErrUnsealFailed indicates the ciphertext did not authenticate.
	ErrUnsealFailed = errors.New("unseal failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// sealContext binds the derived key to this use. Changing it invalidates
// every previously sealed token.
const sealContext = "punchsync-source-credentials"

// TokenSealer encrypts the source API token before it is persisted.
// A nil sealer is valid and passes tokens through unchanged.
type TokenSealer struct {
	aead cipher.AEAD
}

// NewTokenSealer builds a sealer from the base64-encoded master key in
// security.encryption_key. Returns (nil, nil) when the key is empty:
// sealing is disabled and tokens are stored as-is.
//
// The AES key is not the master key itself but derived from it with
// HKDF-SHA256 under a fixed context string.
func NewTokenSealer(masterKey string) (*TokenSealer, error) {
	if masterKey == "" {
		return nil, nil // sealing disabled
	}

	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) < 16 {
		return nil, errors.New("encryption key must be at least 16 bytes")
	}

	derived, err := deriveKey(key, []byte(sealContext), 32)
	if err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &TokenSealer{aead: aead}, nil
}

// deriveKey derives a key of keyLen bytes using HKDF-SHA256.
func deriveKey(secret, context []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, context)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts a token and returns base64 ciphertext with the random
// nonce prepended. Empty input and a nil sealer both pass through.
func (s *TokenSealer) Seal(plaintext string) (string, error) {
	if s == nil || s.aead == nil {
		return plaintext, nil
	}
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Unseal decrypts base64 ciphertext produced by Seal. Empty input and a
// nil sealer both pass through.
func (s *TokenSealer) Unseal(ciphertext string) (string, error) {
	if s == nil || s.aead == nil {
		return ciphertext, nil
	}
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	// Minimum plausible length: nonce, one byte of payload, auth tag.
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+1+s.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	nonce := data[:nonceSize]
	plaintext, err := s.aead.Open(nil, nonce, data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsealFailed, err.Error())
	}

	return string(plaintext), nil
}

// IsEnabled reports whether sealing is active.
func (s *TokenSealer) IsEnabled() bool {
	return s != nil && s.aead != nil
}

// GenerateEncryptionKey produces a 256-bit random key encoded for the
// security.encryption_key setting.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

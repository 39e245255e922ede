// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package identity maps source worker codes to worker directory entries.
//
// Resolution tries up to three exact-match lookups in order: the primary
// identifier, the secondary user identifier, and an optional custom
// attribute. Matching is case-sensitive and whitespace-significant; no
// normalization is applied at any step. A code that matches nothing is not
// an error: the event is returned unmapped and the persister skips it.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/punchsync/internal/database"
	"github.com/tomtom215/punchsync/internal/models"
)

// Directory is the worker lookup surface the resolver runs against.
type Directory interface {
	GetWorkerByPrimaryID(ctx context.Context, primaryID string) (*models.Worker, error)
	GetWorkerByUserID(ctx context.Context, userID string) (*models.Worker, error)
	GetWorkerByAttribute(ctx context.Context, name, value string) (*models.Worker, error)
}

// Resolver resolves source worker codes against a directory.
type Resolver struct {
	dir       Directory
	attribute string
}

// NewResolver creates a resolver. attribute names the custom worker
// attribute used as the third fallback; empty disables that step.
func NewResolver(dir Directory, attribute string) *Resolver {
	return &Resolver{dir: dir, attribute: attribute}
}

// Resolve maps one classified event to a worker. The returned event has
// Mapped=false when no fallback matched; an error is returned only for
// store failures, never for a missing mapping.
func (r *Resolver) Resolve(ctx context.Context, ev models.ClassifiedEvent) (models.ResolvedEvent, error) {
	resolved := models.ResolvedEvent{ClassifiedEvent: ev}

	worker, err := r.lookup(ctx, ev.SourceWorkerCode)
	if err != nil {
		return resolved, err
	}
	if worker == nil {
		return resolved, nil
	}

	resolved.WorkerID = worker.ID
	resolved.Mapped = true
	return resolved, nil
}

// lookup runs the ordered fallbacks. Returns (nil, nil) when nothing matched.
func (r *Resolver) lookup(ctx context.Context, code string) (*models.Worker, error) {
	worker, err := r.dir.GetWorkerByPrimaryID(ctx, code)
	if err == nil {
		return worker, nil
	}
	if !errors.Is(err, database.ErrWorkerNotFound) {
		return nil, fmt.Errorf("primary id lookup failed: %w", err)
	}

	worker, err = r.dir.GetWorkerByUserID(ctx, code)
	if err == nil {
		return worker, nil
	}
	if !errors.Is(err, database.ErrWorkerNotFound) {
		return nil, fmt.Errorf("user id lookup failed: %w", err)
	}

	if r.attribute == "" {
		return nil, nil
	}

	worker, err = r.dir.GetWorkerByAttribute(ctx, r.attribute, code)
	if err == nil {
		return worker, nil
	}
	if !errors.Is(err, database.ErrWorkerNotFound) {
		return nil, fmt.Errorf("attribute lookup failed: %w", err)
	}

	return nil, nil
}

// Package store is the persistence boundary for the guardianship aggregate.
//
// Multi-writer safety lives here, not in the aggregate: every Save carries
// the version the caller loaded, and a mismatch comes back as a
// VersionConflictError. The caller reloads and retries; the engine itself
// never retries.
package store

import (
	"context"
	"fmt"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
	"walezi/pkg/platform/sentinel"
)

// Store persists guardianship snapshots with optimistic concurrency.
type Store interface {
	// Save persists the aggregate. expectedVersion is the version the caller
	// loaded (zero for a new aggregate); on mismatch Save returns a
	// VersionConflictError wrapping sentinel.ErrConflict.
	Save(ctx context.Context, g *models.Guardianship, expectedVersion int64) error

	// FindByID loads an aggregate, dissolved ones included (they are never
	// hard-deleted). Returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error)

	// ListActive returns all aggregates still in the ACTIVE state.
	ListActive(ctx context.Context) ([]*models.Guardianship, error)
}

// VersionConflictError reports an optimistic-concurrency failure.
type VersionConflictError struct {
	GuardianshipID id.GuardianshipID
	Expected       int64
	Actual         int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("guardianship %s version conflict: expected %d, actual %d", e.GuardianshipID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error {
	return sentinel.ErrConflict
}

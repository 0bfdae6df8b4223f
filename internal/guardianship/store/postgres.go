package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
	"walezi/pkg/platform/sentinel"
	txcontext "walezi/pkg/platform/tx"
)

// Postgres persists guardianship snapshots in a JSONB column with a version
// column enforcing optimistic concurrency. The outbox store shares the
// transaction via pkg/platform/tx so snapshot and events commit atomically.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Schema is the DDL this store expects; applied by migrations, kept here so
// the integration tests can bootstrap a bare database.
const Schema = `
CREATE TABLE IF NOT EXISTS guardianships (
    id         UUID PRIMARY KEY,
    ward_id    UUID NOT NULL,
    is_active  BOOLEAN NOT NULL,
    version    BIGINT NOT NULL,
    snapshot   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS guardianships_active_idx ON guardianships (is_active) WHERE is_active;
`

func (s *Postgres) Save(ctx context.Context, g *models.Guardianship, expectedVersion int64) error {
	snapshot, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal guardianship snapshot: %w", err)
	}
	exec := s.execer(ctx)

	if expectedVersion == 0 {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO guardianships (id, ward_id, is_active, version, snapshot, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.UUID(g.ID), uuid.UUID(g.Ward.WardID), g.IsActive, g.Version, snapshot, time.Now().UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &VersionConflictError{GuardianshipID: g.ID, Expected: 0, Actual: s.currentVersion(ctx, g.ID)}
			}
			return fmt.Errorf("insert guardianship: %w", err)
		}
		return nil
	}

	result, err := exec.ExecContext(ctx, `
		UPDATE guardianships
		SET ward_id = $1, is_active = $2, version = $3, snapshot = $4, updated_at = $5
		WHERE id = $6 AND version = $7`,
		uuid.UUID(g.Ward.WardID), g.IsActive, g.Version, snapshot, time.Now().UTC(),
		uuid.UUID(g.ID), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update guardianship: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update guardianship: %w", err)
	}
	if affected == 0 {
		actual := s.currentVersion(ctx, g.ID)
		if actual == 0 {
			return sentinel.ErrNotFound
		}
		return &VersionConflictError{GuardianshipID: g.ID, Expected: expectedVersion, Actual: actual}
	}
	return nil
}

func (s *Postgres) currentVersion(ctx context.Context, guardianshipID id.GuardianshipID) int64 {
	var version int64
	_ = s.execer(ctx).QueryRowContext(ctx,
		`SELECT version FROM guardianships WHERE id = $1`, uuid.UUID(guardianshipID),
	).Scan(&version)
	return version
}

func (s *Postgres) FindByID(ctx context.Context, guardianshipID id.GuardianshipID) (*models.Guardianship, error) {
	var snapshot []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT snapshot FROM guardianships WHERE id = $1`, uuid.UUID(guardianshipID),
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load guardianship: %w", err)
	}
	var g models.Guardianship
	if err := json.Unmarshal(snapshot, &g); err != nil {
		return nil, fmt.Errorf("%w: corrupt guardianship snapshot", sentinel.ErrInvalidState)
	}
	return &g, nil
}

func (s *Postgres) ListActive(ctx context.Context) ([]*models.Guardianship, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT snapshot FROM guardianships WHERE is_active ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list active guardianships: %w", err)
	}
	defer rows.Close()

	var active []*models.Guardianship
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan guardianship: %w", err)
		}
		var g models.Guardianship
		if err := json.Unmarshal(snapshot, &g); err != nil {
			return nil, fmt.Errorf("%w: corrupt guardianship snapshot", sentinel.ErrInvalidState)
		}
		active = append(active, &g)
	}
	return active, rows.Err()
}

// isUniqueViolation detects a primary-key collision.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "walezi/pkg/platform/tx"
)

// PostgresStore persists outbox records next to the guardianship snapshots.
// Append participates in the snapshot transaction when the context carries
// one; the relay marks records published outside any transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is applied by migrations; exposed for integration-test bootstrap.
const Schema = `
CREATE TABLE IF NOT EXISTS guardianship_outbox (
    id             UUID PRIMARY KEY,
    event_id       UUID NOT NULL,
    event_type     TEXT NOT NULL,
    aggregate_id   TEXT NOT NULL,
    aggregate_type TEXT NOT NULL,
    version        BIGINT NOT NULL,
    occurred_at    TIMESTAMPTZ NOT NULL,
    payload        JSONB NOT NULL,
    published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS guardianship_outbox_pending_idx ON guardianship_outbox (occurred_at) WHERE published_at IS NULL;
`

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, records ...Record) error {
	exec := s.execer(ctx)
	for _, record := range records {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO guardianship_outbox
				(id, event_id, event_type, aggregate_id, aggregate_type, version, occurred_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			record.ID, record.EventID, record.EventType, record.AggregateID,
			record.AggregateType, record.Version, record.OccurredAt, []byte(record.Payload),
		)
		if err != nil {
			return fmt.Errorf("append outbox record: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Record, error) {
	// limit <= 0 means no limit, matching the in-memory store.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, event_id, event_type, aggregate_id, aggregate_type, version, occurred_at, payload
		FROM guardianship_outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at
		LIMIT $1`, limitArg)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox records: %w", err)
	}
	defer rows.Close()

	var pending []Record
	for rows.Next() {
		var record Record
		var payload []byte
		if err := rows.Scan(&record.ID, &record.EventID, &record.EventType, &record.AggregateID,
			&record.AggregateType, &record.Version, &record.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		record.Payload = payload
		pending = append(pending, record)
	}
	return pending, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, at time.Time, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE guardianship_outbox SET published_at = $1 WHERE id = ANY($2)`,
		at, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("mark outbox records published: %w", err)
	}
	return nil
}

// Package outbox implements the transactional outbox for domain events.
//
// Mutating commands drain events from the aggregate; the service appends
// them here inside the saving transaction. The relay publishes committed
// records to Kafka afterwards, giving at-least-once delivery without
// coupling the engine to a bus implementation. Records are retained after
// publishing for audit.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"walezi/internal/guardianship/models"
)

// Record is one committed, publishable domain event.
type Record struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   string
	AggregateType string
	Version       int64
	OccurredAt    time.Time
	Payload       json.RawMessage
	PublishedAt   *time.Time
}

// NewRecord converts a drained domain event into an outbox record. The
// payload is the full event envelope so consumers need no side lookups.
func NewRecord(event models.Event) (Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            uuid.New(),
		EventID:       event.EventID,
		EventType:     string(event.Type),
		AggregateID:   event.AggregateID.String(),
		AggregateType: event.AggregateType,
		Version:       event.Version,
		OccurredAt:    event.OccurredAt,
		Payload:       payload,
	}, nil
}

// Store persists outbox records.
type Store interface {
	// Append writes records; inside a transaction when the context carries
	// one (pkg/platform/tx), so events commit with the snapshot.
	Append(ctx context.Context, records ...Record) error

	// ListPending returns unpublished records in commit order.
	ListPending(ctx context.Context, limit int) ([]Record, error)

	// MarkPublished stamps records as delivered.
	MarkPublished(ctx context.Context, at time.Time, ids ...uuid.UUID) error
}

// Publisher delivers one record to the bus.
type Publisher interface {
	Publish(ctx context.Context, record Record) error
	Close() error
}

package models

import (
	"time"

	"github.com/google/uuid"

	id "walezi/pkg/domain"
)

// EventType names an emitted domain event.
type EventType string

const (
	EventGuardianshipCreated       EventType = "guardianship_created"
	EventMultipleGuardiansAssigned EventType = "multiple_guardians_assigned"
	EventGuardianReplaced          EventType = "guardian_replaced"
	EventGuardianshipDissolved     EventType = "guardianship_dissolved"
	EventWardMajorityReached       EventType = "ward_majority_reached"
	EventAnnualReportFiled         EventType = "annual_report_filed"
	EventGuardianBondPosted        EventType = "guardian_bond_posted"
)

// AggregateType identifies this aggregate on the event envelope.
const AggregateType = "guardianship"

// Event is the envelope emitted by aggregate commands. Events accumulate on
// the aggregate and are drained by the service layer into the outbox, to be
// published only after the transaction commits (at-least-once delivery).
type Event struct {
	EventID       uuid.UUID         `json:"event_id"`
	Type          EventType         `json:"type"`
	AggregateID   id.GuardianshipID `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int64             `json:"version"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Payload       map[string]any    `json:"payload,omitempty"`
}

func newEvent(t EventType, aggregateID id.GuardianshipID, version int64, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		EventID:       uuid.New(),
		Type:          t,
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		Version:       version,
		OccurredAt:    occurredAt,
		Payload:       payload,
	}
}

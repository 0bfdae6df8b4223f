package outbox

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"walezi/internal/guardianship/models"
	id "walezi/pkg/domain"
)

// fakePublisher records publishes and fails on demand.
type fakePublisher struct {
	published []Record
	failAfter int
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, record Record) error {
	if p.err != nil && len(p.published) >= p.failAfter {
		return p.err
	}
	p.published = append(p.published, record)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type RelaySuite struct {
	suite.Suite

	ctx       context.Context
	store     *InMemoryStore
	publisher *fakePublisher
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.publisher = &fakePublisher{}
}

func (s *RelaySuite) relay() *Relay {
	return NewRelay(s.store, s.publisher, slog.New(slog.DiscardHandler))
}

func (s *RelaySuite) appendEvents(n int) []Record {
	aggregateID := id.NewGuardianshipID()
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		record, err := NewRecord(models.Event{
			Type:          models.EventAnnualReportFiled,
			AggregateID:   aggregateID,
			AggregateType: models.AggregateType,
			Version:       int64(i + 1),
			OccurredAt:    time.Now().UTC(),
		})
		s.Require().NoError(err)
		records = append(records, record)
	}
	s.Require().NoError(s.store.Append(s.ctx, records...))
	return records
}

func (s *RelaySuite) TestDrainPublishesInCommitOrder() {
	records := s.appendEvents(3)

	s.Require().NoError(s.relay().drainOnce(s.ctx))

	s.Require().Len(s.publisher.published, 3)
	for i, record := range records {
		s.Equal(record.ID, s.publisher.published[i].ID)
	}

	pending, err := s.store.ListPending(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(pending)

	for _, record := range s.store.All() {
		s.NotNil(record.PublishedAt)
	}
}

func (s *RelaySuite) TestDrainStopsBatchOnFirstFailure() {
	records := s.appendEvents(3)
	s.publisher.failAfter = 1
	s.publisher.err = errors.New("broker unavailable")

	s.Require().NoError(s.relay().drainOnce(s.ctx))

	s.Require().Len(s.publisher.published, 1)
	s.Equal(records[0].ID, s.publisher.published[0].ID)

	pending, err := s.store.ListPending(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(records[1].ID, pending[0].ID)

	// Broker recovers; the next drain delivers the remainder in order.
	s.publisher.err = nil
	s.Require().NoError(s.relay().drainOnce(s.ctx))
	s.Require().Len(s.publisher.published, 3)
	s.Equal(records[2].ID, s.publisher.published[2].ID)
}

func (s *RelaySuite) TestDrainNoopOnEmptyStore() {
	s.Require().NoError(s.relay().drainOnce(s.ctx))
	s.Empty(s.publisher.published)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	relay := NewRelay(s.store, s.publisher, slog.New(slog.DiscardHandler), WithInterval(time.Millisecond))
	s.appendEvents(1)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	s.Eventually(func() bool {
		pending, err := s.store.ListPending(s.ctx, 0)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("relay did not stop on cancel")
	}
}

package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Relay drains pending records to the publisher on an interval. Publishing is
// at-least-once: a record is only marked published after the bus accepted it,
// so a crash between publish and mark re-delivers.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

// RelayOption configures the Relay.
type RelayOption func(*Relay)

func WithInterval(interval time.Duration) RelayOption {
	return func(r *Relay) { r.interval = interval }
}

func WithBatchSize(size int) RelayOption {
	return func(r *Relay) { r.batchSize = size }
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(store Store, publisher Publisher, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains batches until the context is cancelled. Failures are logged and
// retried on the next tick; the relay never drops a record.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drainOnce(ctx context.Context) error {
	start := time.Now()
	pending, err := r.store.ListPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var delivered []uuid.UUID
	for _, record := range pending {
		if err := r.publisher.Publish(ctx, record); err != nil {
			if r.metrics != nil {
				r.metrics.PublishFailures.Inc()
			}
			r.logger.WarnContext(ctx, "publish failed, will retry",
				"record_id", record.ID,
				"event_type", record.EventType,
				"error", err,
			)
			// Stop the batch to preserve per-aggregate ordering.
			break
		}
		delivered = append(delivered, record.ID)
		if r.metrics != nil {
			r.metrics.Published.Inc()
		}
	}
	if len(delivered) > 0 {
		if err := r.store.MarkPublished(ctx, time.Now().UTC(), delivered...); err != nil {
			return err
		}
	}
	if r.metrics != nil {
		r.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

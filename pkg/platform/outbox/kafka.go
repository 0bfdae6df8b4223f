package outbox

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher publishes outbox records to a Kafka topic, keyed by
// aggregate ID so per-guardianship ordering survives partitioning.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a synchronous producer. Delivery guarantees
// come from the outbox, so the producer itself stays simple.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, record Record) error {
	results := p.client.ProduceSync(ctx, &kgo.Record{
		Topic: p.topic,
		Key:   []byte(record.AggregateID),
		Value: record.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(record.EventType)},
			{Key: "aggregate_type", Value: []byte(record.AggregateType)},
		},
	})
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", record.EventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes changes to a kafka topic, keyed by territory so consumers
// see each territory's transitions in order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka constructs a kafka-backed publisher.
func NewKafka(brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

// Publish hands the change to the producer. Delivery is asynchronous; a
// failed delivery is logged for operator follow-up, matching the rest of the
// post-commit side-effect policy.
func (k *Kafka) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal ownership change: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(c.TerritoryID.String()),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("failed to publish ownership change",
				"territory_id", c.TerritoryID.String(),
				"kind", string(c.Kind),
				"error", err)
		}
	})
	return nil
}

// Close flushes pending records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}

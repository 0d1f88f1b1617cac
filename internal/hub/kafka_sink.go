package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink mirrors every incident_upsert hub message onto a Kafka topic
// (heartbeat, resync and shutdown frames are not forwarded) for downstream
// consumers that can't hold a long-lived HTTP connection. It is strictly
// an additional fan-out target: the push stream remains the primary
// delivery path, and a Kafka outage never blocks Publish.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink dials the given brokers and returns a sink that publishes
// to topic. Returns nil, nil when brokers is empty so callers can treat
// "no Kafka configured" as a normal, non-error path.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// Run subscribes to the hub and forwards every message to Kafka until ctx
// is canceled. Intended to run in its own goroutine; "serve" starts it
// alongside the supervisor.
func (k *KafkaSink) Run(ctx context.Context, h *Hub) {
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Type != MessageIncidentUpsert {
				continue
			}
			k.produce(ctx, msg)
		}
	}
}

func (k *KafkaSink) produce(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		k.logger.ErrorContext(ctx, "kafka sink marshal failed", "error", err)
		return
	}
	record := &kgo.Record{Topic: k.topic, Value: data}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.ErrorContext(ctx, "kafka sink produce failed", "error", err)
		}
	})
}

// Close flushes in-flight produces and closes the underlying client.
func (k *KafkaSink) Close() {
	if k == nil || k.client == nil {
		return
	}
	_ = k.client.Flush(context.Background())
	k.client.Close()
}

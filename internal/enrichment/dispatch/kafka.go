// Package dispatch delivers validated enrichment results to downstream
// consumers (underwriting evaluation, fraud analysis). Dispatch is
// fire-and-forget: the pipeline's outcome never depends on delivery.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"enrichd/internal/enrichment/metrics"
	"enrichd/internal/enrichment/models"
	id "enrichd/pkg/domain"
)

// Event is the envelope published for each completed enrichment run.
type Event struct {
	EntityID   id.EntityID                        `json:"entity_id"`
	EntityKind models.EntityKind                  `json:"entity_kind"`
	DataTypes  []models.DataType                  `json:"data_types"`
	Data       map[models.DataType]models.Payload `json:"data"`
	OccurredAt time.Time                          `json:"occurred_at"`
}

// KafkaDispatcher publishes enrichment events to a Kafka topic. Produces
// are asynchronous; delivery errors are logged and counted, never
// returned to the pipeline.
type KafkaDispatcher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type KafkaOption func(*KafkaDispatcher)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(d *KafkaDispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) KafkaOption {
	return func(d *KafkaDispatcher) {
		d.metrics = m
	}
}

// NewKafka connects a producer and ensures the topic exists.
func NewKafka(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaDispatcher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	d := &KafkaDispatcher{client: client, topic: topic}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return d, nil
}

// ensureTopic creates the topic if it does not exist yet.
func (d *KafkaDispatcher) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(d.client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, d.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", d.topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", d.topic, res.Err)
		}
	}
	return nil
}

// Notify publishes the merged result keyed by entity id so per-entity
// ordering holds. The produce is asynchronous; the completion callback
// only logs.
func (d *KafkaDispatcher) Notify(ctx context.Context, entityID id.EntityID, kind models.EntityKind, merged map[models.DataType]models.Payload) error {
	types := make([]models.DataType, 0, len(merged))
	for dt := range merged {
		types = append(types, dt)
	}

	raw, err := json.Marshal(Event{
		EntityID:   entityID,
		EntityKind: kind,
		DataTypes:  types,
		Data:       merged,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal enrichment event: %w", err)
	}

	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(entityID),
		Value: raw,
	}
	d.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err == nil {
			return
		}
		if d.metrics != nil {
			d.metrics.IncrementDispatchFailure()
		}
		if d.logger != nil {
			d.logger.Error("enrichment event produce failed",
				"topic", d.topic,
				"entity_id", entityID,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes pending produces and releases the client.
func (d *KafkaDispatcher) Close(ctx context.Context) error {
	if err := d.client.Flush(ctx); err != nil {
		d.client.Close()
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	d.client.Close()
	return nil
}

package infra

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventProducer publishes audit events to Kafka. Messages are keyed by
// actor so per-actor ordering survives partitioning.
type EventProducer struct {
	writer  *kafka.Writer
	logger  *slog.Logger
	enabled bool
}

// NewEventProducer creates a producer. If brokers is empty or streaming is
// disabled, publishes are no-ops and the audit trail stays Postgres-only.
func NewEventProducer(brokers string, enabled bool, logger *slog.Logger) *EventProducer {
	if !enabled || brokers == "" {
		logger.Info("audit event streaming disabled")
		return &EventProducer{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("audit event producer initialized", "brokers", brokers)
	return &EventProducer{writer: w, logger: logger, enabled: true}
}

// Publish sends one event to the given topic. No-op if disabled.
func (p *EventProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if !p.enabled {
		return nil
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// Close flushes and shuts down the writer.
func (p *EventProducer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// EventConsumer reads audit events from a single topic as part of a
// consumer group.
type EventConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewEventConsumer creates a consumer for one topic and group.
func NewEventConsumer(brokers, topic, groupID string, logger *slog.Logger) *EventConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(brokers, ","),
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &EventConsumer{reader: r, logger: logger}
}

// ReadMessage blocks until the next event arrives or ctx is cancelled.
func (c *EventConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return c.reader.ReadMessage(ctx)
}

// Close shuts down the reader and leaves the consumer group.
func (c *EventConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

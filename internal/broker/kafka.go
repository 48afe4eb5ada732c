// Package broker forwards domain events to external collaborators: the
// full event stream to Kafka and partner-facing notifications to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"freight-bidding-api/internal/events"
)

// Writer is the subset of kafka.Writer the publisher needs, so tests can
// swap in a fake.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every event as JSON, keyed by the event key so all
// events of one quote land on the same partition.
type KafkaPublisher struct {
	writer  Writer
	logger  *logrus.Logger
	timeout time.Duration
}

func NewKafkaPublisher(brokerURL, topic string, logger *logrus.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	return NewKafkaPublisherWithWriter(w, logger)
}

func NewKafkaPublisherWithWriter(w Writer, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger, timeout: 10 * time.Second}
}

// Handle is an events.Handler.
func (p *KafkaPublisher) Handle(ctx context.Context, e events.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
		Time: e.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed for event %s: %w", e.ID, err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id":   e.ID,
		"event_type": e.Type,
		"key":        e.Key,
	}).Debug("event published to kafka")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

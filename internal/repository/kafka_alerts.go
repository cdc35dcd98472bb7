package repository

import (
	"context"
	"fmt"

	"NarraPulse/internal/domain/models"
	pkgkafka "NarraPulse/pkg/kafka"
)

// KafkaAlertPublisher ships detected alerts to a Kafka topic, keyed by
// narrative ID so one narrative's alerts stay ordered within a partition.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAlertPublisher wraps an existing producer.
func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) (*KafkaAlertPublisher, error) {
	if topic == "" {
		return nil, fmt.Errorf("alert topic is required")
	}
	return &KafkaAlertPublisher{producer: producer, topic: topic}, nil
}

// PublishAlerts sends one message per alert.
func (p *KafkaAlertPublisher) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(alerts))
	for _, a := range alerts {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(a.NarrativeID),
			Value: a,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	return nil
}

// Close releases the underlying producer.
func (p *KafkaAlertPublisher) Close() error {
	return p.producer.Close()
}

// Package kafka writes order lifecycle events to an append-only Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"fooddelivery/internal/models"
	"fooddelivery/pkg/logger"
)

// Producer publishes order events keyed by order ID so each order's events stay in one partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewSyncProducerConfig returns the sarama settings used for the audit log.
func NewSyncProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

// NewProducer connects a sync producer to brokers.
func NewProducer(brokers []string, topic string, log *logger.Logger) (*Producer, error) {
	p, err := sarama.NewSyncProducer(brokers, NewSyncProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewProducerFromClient(p, topic, log), nil
}

// NewProducerFromClient wraps an existing sarama.SyncProducer.
func NewProducerFromClient(p sarama.SyncProducer, topic string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{producer: p, topic: topic, log: log.With("service", "KafkaProducer")}
}

// Publish writes event to the topic and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, event models.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s event to Kafka: %w", event.Type, err)
	}
	p.log.Debug("Order event logged", "topic", p.topic, "partition", partition, "offset", offset, "event", event.Type)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

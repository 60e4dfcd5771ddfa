package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/trinislearning/hit339/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish keys messages by aggregate id so one order's events stay on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload, // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Package events delivers outbox events to a message broker.
package events

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
)

const (
	BrokerLog      = "log"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
	Close() error
}

// LogPublisher writes events to the log. It is the default when no broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	logger.FromContext(ctx, p.log).WithFields(logrus.Fields{
		"event_id":     event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
		"payload":      string(event.Payload),
	}).Info("event published")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

type Options struct {
	KafkaBrokers []string
	KafkaTopic   string
	RabbitURL    string
	RabbitQueue  string
}

// NewPublisher builds the publisher for the named broker.
func NewPublisher(broker string, opts Options, log logrus.FieldLogger) (Publisher, error) {
	switch broker {
	case "", BrokerLog:
		return NewLogPublisher(log), nil
	case BrokerKafka:
		if len(opts.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka publisher needs at least one broker address")
		}
		return NewKafkaPublisher(opts.KafkaTopic, opts.KafkaBrokers...), nil
	case BrokerRabbitMQ:
		return NewRabbitPublisher(opts.RabbitURL, opts.RabbitQueue)
	default:
		return nil, fmt.Errorf("unknown event broker %q", broker)
	}
}

package events

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/trinislearning/hit339/internal/domain"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher sends events to a durable queue through the default exchange.
type RabbitPublisher struct {
	mu        sync.Mutex // amqp channels are not safe for concurrent publishing
	conn      *amqp.Connection
	ch        amqpChannel
	queueName string
}

func NewRabbitPublisher(url, queueName string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare the queue (idempotent operation)
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitPublisher{conn: conn, ch: ch, queueName: queueName}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         event.EventType,
			Timestamp:    event.CreatedAt,
			Headers:      amqp.Table{"aggregate_id": event.AggregateID},
			Body:         event.Payload,
		})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

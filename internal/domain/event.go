package domain

import "time"

const EventOrderPlaced = "order.placed"

// OutboxEvent is a domain event stored in the same transaction as the change it describes.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

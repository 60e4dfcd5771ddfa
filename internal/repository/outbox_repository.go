package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/trinislearning/hit339/internal/domain"
)

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox_events WHERE processed_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

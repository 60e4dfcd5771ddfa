package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trinislearning/hit339/internal/domain"
)

type txRepository struct {
	q querier
}

func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(&txRepository{q: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (t *txRepository) DecrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $1`,
		qty, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}
	return expectAffected(res, ErrInsufficientStock)
}

func (t *txRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	err := t.q.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total, created_at) VALUES ($1, $2, $3) RETURNING id`,
		order.UserID, order.Total, order.CreatedAt,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		it.OrderID = order.ID
		err := t.q.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) AddOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.AggregateID, event.EventType, string(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

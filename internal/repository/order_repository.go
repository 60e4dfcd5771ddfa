package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trinislearning/hit339/internal/domain"
)

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, total, created_at FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.UserID, &order.Total, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, total, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.Total, &order.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// Items are loaded after the order cursor is closed: SQLite runs on a single connection.
	for _, order := range orders {
		items, err := r.orderItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}
	return orders, nil
}

func (r *Repository) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

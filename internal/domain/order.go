package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItem     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

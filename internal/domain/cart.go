package domain

import "github.com/shopspring/decimal"

// CartItem is a session-scoped cart line. Price is frozen when the line is first added.
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Conventional category tags. Category is free text and is not validated against these.
const (
	CategoryBook = "Book"
	CategoryGame = "Game"
	CategoryToy  = "Toy"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductFilter narrows catalog listings. Empty fields match everything.
type ProductFilter struct {
	Category string
	Query    string
}

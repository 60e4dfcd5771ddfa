package cart

import (
	"encoding/json"
	"fmt"

	"github.com/trinislearning/hit339/internal/domain"
)

// Encode serializes cart lines for the session store. A nil cart encodes as an empty list.
func Encode(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode. Empty input yields an empty cart.
func Decode(data []byte) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	return items, nil
}

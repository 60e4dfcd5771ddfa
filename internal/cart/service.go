// Package cart manages the per-session shopping cart.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
	"github.com/trinislearning/hit339/internal/session"
)

const (
	sessionKey  = "cart"
	maxAttempts = 3
)

var (
	ErrConcurrentUpdate = errors.New("cart was modified concurrently, please retry")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")

	errUnchanged = errors.New("cart unchanged")
)

type Service struct {
	store    session.Store
	products repository.ProductReader
	log      logrus.FieldLogger
}

func NewService(store session.Store, products repository.ProductReader, log logrus.FieldLogger) *Service {
	return &Service{
		store:    store,
		products: products,
		log:      log,
	}
}

// GetCart returns the session's cart lines in insertion order.
func (s *Service) GetCart(ctx context.Context, sid string) ([]domain.CartItem, error) {
	_, items, err := s.load(ctx, sid)
	return items, err
}

// Add puts qty units of a product in the cart. A new line copies the product's
// current name, price and image; later price changes do not affect it.
func (s *Service) Add(ctx context.Context, sid string, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	return s.mutate(ctx, sid, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity += qty
				return items, nil
			}
		}

		p, err := s.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		return append(items, domain.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
			ImageURL:  p.ImageURL,
		}), nil
	})
}

// Update sets the quantity of an existing line. qty <= 0 removes the line.
// Products that are not in the cart are ignored.
func (s *Service) Update(ctx context.Context, sid string, productID int64, qty int) error {
	return s.mutate(ctx, sid, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ProductID != productID {
				continue
			}
			if qty <= 0 {
				return append(items[:i], items[i+1:]...), nil
			}
			items[i].Quantity = qty
			return items, nil
		}
		return nil, errUnchanged
	})
}

func (s *Service) Remove(ctx context.Context, sid string, productID int64) error {
	return s.mutate(ctx, sid, func(items []domain.CartItem) ([]domain.CartItem, error) {
		kept := items[:0]
		for _, it := range items {
			if it.ProductID != productID {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(items) {
			return nil, errUnchanged
		}
		return kept, nil
	})
}

func (s *Service) Clear(ctx context.Context, sid string) error {
	if err := s.store.Delete(ctx, sid, sessionKey); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *Service) GetCount(ctx context.Context, sid string) (int, error) {
	items, err := s.GetCart(ctx, sid)
	if err != nil {
		return 0, err
	}
	return Count(items), nil
}

func (s *Service) GetSubtotal(ctx context.Context, sid string) (decimal.Decimal, error) {
	items, err := s.GetCart(ctx, sid)
	if err != nil {
		return decimal.Zero, err
	}
	return Subtotal(items), nil
}

// Count is the total number of units across all lines.
func Count(items []domain.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums frozen price times quantity across all lines.
func Subtotal(items []domain.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (s *Service) load(ctx context.Context, sid string) ([]byte, []domain.CartItem, error) {
	raw, err := s.store.Load(ctx, sid, sessionKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, []domain.CartItem{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}

	items, err := Decode(raw)
	if err != nil {
		// a corrupt blob is replaced on the next write
		logger.FromContext(ctx, s.log).WithError(err).Warn("discarding unreadable cart")
		return raw, []domain.CartItem{}, nil
	}
	return raw, items, nil
}

// mutate applies fn to the current cart and writes the result back with a
// compare-and-swap. A concurrent write from another request causes a re-read.
func (s *Service) mutate(ctx context.Context, sid string, fn func([]domain.CartItem) ([]domain.CartItem, error)) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prev, items, err := s.load(ctx, sid)
		if err != nil {
			return err
		}

		next, err := fn(items)
		if errors.Is(err, errUnchanged) {
			return nil
		}
		if err != nil {
			return err
		}

		blob, err := Encode(next)
		if err != nil {
			return err
		}

		err = s.store.CompareAndSwap(ctx, sid, sessionKey, prev, blob)
		if err == nil {
			return nil
		}
		if !errors.Is(err, session.ErrConflict) {
			return fmt.Errorf("failed to save cart: %w", err)
		}
		logger.FromContext(ctx, s.log).WithField("attempt", attempt).Debug("cart write conflict, retrying")
	}
	return ErrConcurrentUpdate
}

// Package checkout turns a session cart into an order.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/trinislearning/hit339/internal/cart"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/metrics"
	"github.com/trinislearning/hit339/internal/repository"
)

// CartStore is the part of the cart service checkout depends on.
type CartStore interface {
	GetCart(ctx context.Context, sid string) ([]domain.CartItem, error)
	Clear(ctx context.Context, sid string) error
}

type Service struct {
	carts    CartStore
	products repository.ProductReader
	uow      repository.UnitOfWork
	log      logrus.FieldLogger
}

func NewService(carts CartStore, products repository.ProductReader, uow repository.UnitOfWork, log logrus.FieldLogger) *Service {
	return &Service{
		carts:    carts,
		products: products,
		uow:      uow,
		log:      log,
	}
}

// Checkout places an order for everything in the session's cart on behalf of userID.
//
// An empty cart returns OutcomeEmptyCart without touching the database. A line that
// exceeds available stock returns *InsufficientStockError and leaves stock, orders and
// the cart unchanged. Any other failure inside the transaction is reported as
// ErrTransactionFailed after a full rollback.
func (s *Service) Checkout(ctx context.Context, sid string, userID int64) (*Result, error) {
	res, err := s.checkout(ctx, sid, userID)

	outcome := OutcomeFailed
	var stockErr *InsufficientStockError
	switch {
	case err == nil:
		outcome = res.Outcome
	case errors.As(err, &stockErr):
		outcome = OutcomeOutOfStock
	}
	metrics.RecordCheckout(outcome.String())

	return res, err
}

func (s *Service) checkout(ctx context.Context, sid string, userID int64) (*Result, error) {
	log := logger.FromContext(ctx, s.log).WithField("user_id", userID)

	items, err := s.carts.GetCart(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if len(items) == 0 {
		return &Result{Outcome: OutcomeEmptyCart}, nil
	}

	if err := s.precheck(ctx, items); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:    userID,
		Total:     cart.Subtotal(items),
		Items:     make([]domain.OrderItem, 0, len(items)),
		CreatedAt: time.Now().UTC(),
	}
	for _, it := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
		})
	}

	err = s.uow.WithinTx(ctx, func(tx repository.Tx) error {
		for _, it := range items {
			err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
			if errors.Is(err, repository.ErrInsufficientStock) {
				return &InsufficientStockError{ProductID: it.ProductID, ProductName: it.Name}
			}
			if err != nil {
				return err
			}
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		event, err := orderPlacedEvent(order)
		if err != nil {
			return err
		}
		return tx.AddOutboxEvent(ctx, event)
	})

	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		log.WithField("product_id", stockErr.ProductID).Info("checkout lost a race for stock")
		return nil, stockErr
	}
	if err != nil {
		log.WithError(err).Error("checkout transaction rolled back")
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	// the order is committed; a stale cart is preferable to reporting failure
	if err := s.carts.Clear(ctx, sid); err != nil {
		log.WithError(err).WithField("order_id", order.ID).Error("failed to clear cart after checkout")
	}

	log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")

	return &Result{Outcome: OutcomeCommitted, Order: order}, nil
}

// precheck rejects the cart, in cart order, on the first line the catalog cannot cover.
// The guarded decrement inside the transaction remains the authority.
func (s *Service) precheck(ctx context.Context, items []domain.CartItem) error {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return &InsufficientStockError{ProductID: it.ProductID, ProductName: it.Name}
		}
		if it.Quantity > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name}
		}
	}
	return nil
}

type orderPlacedItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type orderPlacedPayload struct {
	OrderID  int64             `json:"order_id"`
	UserID   int64             `json:"user_id"`
	Items    []orderPlacedItem `json:"items"`
	Total    decimal.Decimal   `json:"total"`
	PlacedAt time.Time         `json:"placed_at"`
}

func orderPlacedEvent(order *domain.Order) (*domain.OutboxEvent, error) {
	payload := orderPlacedPayload{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Items:    make([]orderPlacedItem, 0, len(order.Items)),
		Total:    order.Total,
		PlacedAt: order.CreatedAt,
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, orderPlacedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}

	return &domain.OutboxEvent{
		ID:          uuid.New().String(),
		AggregateID: fmt.Sprintf("%d", order.ID),
		EventType:   domain.EventOrderPlaced,
		Payload:     payloadJSON,
		CreatedAt:   order.CreatedAt,
	}, nil
}

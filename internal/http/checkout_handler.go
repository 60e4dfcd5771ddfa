package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/checkout"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/repository"
)

type CheckoutService interface {
	Checkout(ctx context.Context, sid string, userID int64) (*checkout.Result, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	orders   OrderReader
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewCheckoutHandler(svc CheckoutService, orders OrderReader, timeout time.Duration, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		orders:   orders,
		timeout:  timeout,
		log:      log,
	}
}

type CheckoutResponseDTO struct {
	Outcome string        `json:"outcome"`
	Order   *domain.Order `json:"order,omitempty"`
}

// POST /cart/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p := getPrincipal(r.Context())

	res, err := h.checkout.Checkout(ctx, getSessionID(r.Context()), p.UserID)
	if errors.Is(err, checkout.ErrTransactionFailed) {
		h.log.WithError(err).WithField("user_id", p.UserID).Error("checkout rolled back")
		respondError(w, http.StatusInternalServerError, "checkout_failed", "Could not complete checkout. Please try again.")
		return
	}
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	if res.Outcome == checkout.OutcomeEmptyCart {
		respondJSON(w, http.StatusOK, CheckoutResponseDTO{Outcome: res.Outcome.String()})
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/checkout/success/%d", res.Order.ID))
	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		Outcome: res.Outcome.String(),
		Order:   res.Order,
	})
}

// GET /checkout/success/{order_id}
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	h.getOwnOrder(w, r)
}

// GET /orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrdersByUser(ctx, getPrincipal(r.Context()).UserID)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /orders/{order_id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.getOwnOrder(w, r)
}

// getOwnOrder hides orders that belong to someone else behind a 404.
func (h *CheckoutHandler) getOwnOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	if order.UserID != getPrincipal(r.Context()).UserID {
		respondServiceError(w, r, h.log, repository.ErrOrderNotFound)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

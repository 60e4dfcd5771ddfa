package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/cart"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/metrics"
)

type CartService interface {
	GetCart(ctx context.Context, sid string) ([]domain.CartItem, error)
	Add(ctx context.Context, sid string, productID int64, qty int) error
	Update(ctx context.Context, sid string, productID int64, qty int) error
	Remove(ctx context.Context, sid string, productID int64) error
	Clear(ctx context.Context, sid string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(carts CartService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponseDTO struct {
	Items    []CartItemDTO   `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func toCartResponse(items []domain.CartItem) CartResponseDTO {
	dto := CartResponseDTO{
		Items:    make([]CartItemDTO, 0, len(items)),
		Count:    cart.Count(items),
		Subtotal: cart.Subtotal(items),
	}
	for _, it := range items {
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageURL,
			LineTotal: it.LineTotal(),
		})
	}
	return dto
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondCart(ctx, w, r, http.StatusOK)
}

// POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	err := h.carts.Add(ctx, getSessionID(r.Context()), req.ProductID, qty)
	metrics.RecordCartMutation("add", err)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(ctx, w, r, http.StatusCreated)
}

// PUT /cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseIDParam(w, r, "product_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	err := h.carts.Update(ctx, getSessionID(r.Context()), productID, *req.Quantity)
	metrics.RecordCartMutation("update", err)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(ctx, w, r, http.StatusOK)
}

// DELETE /cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := parseIDParam(w, r, "product_id")
	if !ok {
		return
	}

	err := h.carts.Remove(ctx, getSessionID(r.Context()), productID)
	metrics.RecordCartMutation("remove", err)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(ctx, w, r, http.StatusOK)
}

// DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err := h.carts.Clear(ctx, getSessionID(r.Context()))
	metrics.RecordCartMutation("clear", err)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(ctx, w, r, http.StatusOK)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, status int) {
	items, err := h.carts.GetCart(ctx, getSessionID(r.Context()))
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, status, toCartResponse(items))
}

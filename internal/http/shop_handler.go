package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/domain"
)

type CatalogService interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	Details(ctx context.Context, id int64) (*domain.Product, error)
}

type ShopHandler struct {
	catalog CatalogService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewShopHandler(catalog CatalogService, timeout time.Duration, log logrus.FieldLogger) *ShopHandler {
	return &ShopHandler{
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type ProductListResponseDTO struct {
	Category string            `json:"category,omitempty"`
	Query    string            `json:"q,omitempty"`
	Products []*domain.Product `json:"products"`
}

// GET /shop?category=&q=
func (h *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter := domain.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}

	products, err := h.catalog.List(ctx, filter)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	respondJSON(w, http.StatusOK, ProductListResponseDTO{
		Category: filter.Category,
		Query:    filter.Query,
		Products: products,
	})
}

// GET /shop/{id}
func (h *ShopHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.catalog.Details(ctx, id)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// parseIDParam writes a 400 and returns false when the URL parameter is not a positive integer.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/admin"
	"github.com/trinislearning/hit339/internal/domain"
)

const multipartMemory = 8 << 20

type AdminService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Details(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, in admin.ProductInput, img *admin.Upload) (*domain.Product, error)
	Update(ctx context.Context, id int64, in admin.ProductInput, img *admin.Upload) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type AdminHandler struct {
	admin          AdminService
	maxUploadBytes int64
	timeout        time.Duration
	log            logrus.FieldLogger
}

func NewAdminHandler(svc AdminService, maxUploadBytes int64, timeout time.Duration, log logrus.FieldLogger) *AdminHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = admin.DefaultMaxImageBytes
	}
	return &AdminHandler{
		admin:          svc,
		maxUploadBytes: maxUploadBytes,
		timeout:        timeout,
		log:            log,
	}
}

// GET /admin/products
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.admin.List(ctx)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /admin/products/{id}
func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.admin.Details(ctx, id)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// POST /admin/products (multipart/form-data)
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, img, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer closeUpload(img)

	p, err := h.admin.Create(ctx, in, img)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/admin/products/%d", p.ID))
	respondJSON(w, http.StatusCreated, p)
}

// PUT /admin/products/{id} (multipart/form-data)
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	in, img, ok := h.readForm(w, r)
	if !ok {
		return
	}
	defer closeUpload(img)

	p, err := h.admin.Update(ctx, id, in, img)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DELETE /admin/products/{id}
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.Delete(ctx, id); err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readForm parses the product form and the optional "image" file. It writes the
// response itself and returns false when the request cannot go further.
func (h *AdminHandler) readForm(w http.ResponseWriter, r *http.Request) (admin.ProductInput, *admin.Upload, bool) {
	var in admin.ProductInput

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondValidation(w, map[string]string{
				"image": fmt.Sprintf("Image too large (max %dMB).", h.maxUploadBytes>>20),
			})
			return in, nil, false
		}
		respondError(w, http.StatusBadRequest, "invalid_form", "could not parse form")
		return in, nil, false
	}

	parseErrs := admin.ValidationErrors{}
	in.Name = r.FormValue("name")
	in.Category = r.FormValue("category")
	in.ImageURL = r.FormValue("image_url")
	in.Description = r.FormValue("description")

	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			parseErrs.Add("price", "Price must be a number.")
		}
		in.Price = price
	} else {
		parseErrs.Add("price", "Price is required.")
	}

	if raw := strings.TrimSpace(r.FormValue("stock")); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			parseErrs.Add("stock", "Stock must be a whole number.")
		}
		in.Stock = stock
	}

	if len(parseErrs) > 0 {
		respondValidation(w, in.Validate(parseErrs))
		return in, nil, false
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, nil, true
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_form", "could not read image")
		return in, nil, false
	}

	return in, &admin.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, true
}

func closeUpload(u *admin.Upload) {
	if u == nil {
		return
	}
	if c, ok := u.Content.(io.Closer); ok {
		c.Close()
	}
}

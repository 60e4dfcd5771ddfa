package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trinislearning/hit339/internal/admin"
	"github.com/trinislearning/hit339/internal/cart"
	"github.com/trinislearning/hit339/internal/catalog"
	"github.com/trinislearning/hit339/internal/checkout"
	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/identity"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/repository"
	"github.com/trinislearning/hit339/internal/session"
)

const (
	ownerEmail    = "owner@test.local"
	ownerPassword = "Owner#123"
)

type testServer struct {
	*httptest.Server
	repo       *repository.Repository
	uploadsDir string
}

func newTestServer(t *testing.T, loginRate int) *testServer {
	t.Helper()
	dir := t.TempDir()

	repo, err := repository.NewRepository(filepath.Join(dir, "storefront.db"))
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations("../repository/migrations"))
	t.Cleanup(func() { repo.Close() })

	log := logger.Discard()
	uploads := filepath.Join(dir, "uploads")

	users := identity.NewService(repo, identity.NewBcryptHasher(bcrypt.MinCost), identity.NewTokenIssuer("test-secret", time.Hour), log)
	require.NoError(t, users.Seed(context.Background(), repo, identity.SeedConfig{
		OwnerEmail:    ownerEmail,
		OwnerPassword: ownerPassword,
	}))

	carts := cart.NewService(session.NewMemoryStore(time.Hour), repo, log)
	srv := httptest.NewServer(NewRouter(Deps{
		Catalog:           catalog.NewService(repo),
		Carts:             carts,
		Checkout:          checkout.NewService(carts, repo, repo, log),
		Orders:            repo,
		Admin:             admin.NewService(repo, admin.NewDiskImageStore(uploads), admin.DefaultMaxImageBytes, log),
		Identity:          users,
		Health:            repo,
		Log:               log,
		RequestTimeout:    5 * time.Second,
		UploadsDir:        uploads,
		MaxUploadBytes:    admin.DefaultMaxImageBytes,
		SessionCookieName: "sid",
		LoginRatePerMin:   loginRate,
	}))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, repo: repo, uploadsDir: uploads}
}

// browser returns a client with its own cookie jar, i.e. its own session.
func (ts *testServer) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (ts *testServer) do(t *testing.T, c *http.Client, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) login(t *testing.T, c *http.Client, email, password string) {
	t.Helper()
	resp := ts.do(t, c, http.MethodPost, "/account/login", LoginRequestDTO{Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (ts *testServer) customer(t *testing.T, email string) *http.Client {
	t.Helper()
	c := ts.browser(t)
	resp := ts.do(t, c, http.MethodPost, "/account/register", RegisterRequestDTO{Email: email, Password: "secret1", FullName: "Test Customer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ts.login(t, c, email, "secret1")
	return c
}

func (ts *testServer) productID(t *testing.T, name string) int64 {
	t.Helper()
	products, err := ts.repo.ListProducts(context.Background(), domain.ProductFilter{Query: name})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].ID
}

func intPtr(n int) *int { return &n }

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)

	resp := ts.do(t, c, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.do(t, c, http.MethodGet, "/shop", nil)
	resp = ts.do(t, c, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "storefront_http_requests_total")
}

func TestShop_ListFilterAndDetails(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)

	resp := ts.do(t, c, http.MethodGet, "/shop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all ProductListResponseDTO
	decodeBody(t, resp, &all)
	assert.Len(t, all.Products, 3)

	resp = ts.do(t, c, http.MethodGet, "/shop?category=Game", nil)
	var games ProductListResponseDTO
	decodeBody(t, resp, &games)
	require.Len(t, games.Products, 1)
	assert.Equal(t, "Catan Board Game", games.Products[0].Name)
	assert.Equal(t, "Game", games.Category)

	resp = ts.do(t, c, http.MethodGet, "/shop?q=LEGO", nil)
	var found ProductListResponseDTO
	decodeBody(t, resp, &found)
	require.Len(t, found.Products, 1)
	assert.Equal(t, "Lego Race Car", found.Products[0].Name)

	id := ts.productID(t, "Catan")
	resp = ts.do(t, c, http.MethodGet, fmt.Sprintf("/shop/%d", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p domain.Product
	decodeBody(t, resp, &p)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("41.99")))

	resp = ts.do(t, c, http.MethodGet, "/shop/99999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, c, http.MethodGet, "/shop/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCart_Lifecycle(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)
	catan := ts.productID(t, "Catan")
	lego := ts.productID(t, "Lego")

	qty := 2
	resp := ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: catan, Quantity: &qty})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cartResp CartResponseDTO
	decodeBody(t, resp, &cartResp)
	assert.Equal(t, 2, cartResp.Count)
	assert.True(t, cartResp.Subtotal.Equal(decimal.RequireFromString("83.98")))

	// quantity defaults to one
	resp = ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: catan})
	decodeBody(t, resp, &cartResp)
	require.Len(t, cartResp.Items, 1)
	assert.Equal(t, 3, cartResp.Items[0].Quantity)

	resp = ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: lego})
	decodeBody(t, resp, &cartResp)
	assert.Equal(t, 4, cartResp.Count)

	resp = ts.do(t, c, http.MethodPut, fmt.Sprintf("/cart/items/%d", catan), UpdateQuantityRequestDTO{Quantity: intPtr(0)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &cartResp)
	require.Len(t, cartResp.Items, 1)
	assert.Equal(t, lego, cartResp.Items[0].ProductID)

	resp = ts.do(t, c, http.MethodDelete, fmt.Sprintf("/cart/items/%d", lego), nil)
	decodeBody(t, resp, &cartResp)
	assert.Empty(t, cartResp.Items)

	// a second browser has its own cart
	other := ts.browser(t)
	ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: lego})
	resp = ts.do(t, other, http.MethodGet, "/cart", nil)
	decodeBody(t, resp, &cartResp)
	assert.Empty(t, cartResp.Items)

	resp = ts.do(t, c, http.MethodDelete, "/cart", nil)
	decodeBody(t, resp, &cartResp)
	assert.Zero(t, cartResp.Count)
	assert.True(t, cartResp.Subtotal.IsZero())
}

func TestCart_Errors(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)

	resp := ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: 99999})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	zero := 0
	resp = ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: ts.productID(t, "Catan"), Quantity: &zero})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, c, http.MethodPut, "/cart/items/abc", UpdateQuantityRequestDTO{Quantity: intPtr(1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCart_UpdateWithoutQuantityKeepsLine(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)
	catan := ts.productID(t, "Catan")

	ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: catan})

	resp := ts.do(t, c, http.MethodPut, fmt.Sprintf("/cart/items/%d", catan), map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "invalid_quantity", errResp.Code)

	resp = ts.do(t, c, http.MethodGet, "/cart", nil)
	var cartResp CartResponseDTO
	decodeBody(t, resp, &cartResp)
	require.Len(t, cartResp.Items, 1)
	assert.Equal(t, 1, cartResp.Items[0].Quantity)
}

func TestCheckout_RequiresLogin(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)

	ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: ts.productID(t, "Catan")})
	resp := ts.do(t, c, http.MethodPost, "/cart/checkout", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, c, http.MethodGet, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckout_PlacesOrder(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.customer(t, "buyer@test.local")
	catan := ts.productID(t, "Catan")

	qty := 2
	ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: catan, Quantity: &qty})

	resp := ts.do(t, c, http.MethodPost, "/cart/checkout", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var placed CheckoutResponseDTO
	decodeBody(t, resp, &placed)
	require.NotNil(t, placed.Order)
	assert.Equal(t, "COMMITTED", placed.Outcome)
	assert.True(t, placed.Order.Total.Equal(decimal.RequireFromString("83.98")))

	location := resp.Header.Get("Location")
	assert.Equal(t, fmt.Sprintf("/checkout/success/%d", placed.Order.ID), location)

	resp = ts.do(t, c, http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var order domain.Order
	decodeBody(t, resp, &order)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	p, err := ts.repo.GetProduct(context.Background(), catan)
	require.NoError(t, err)
	assert.Equal(t, 23, p.Stock)

	resp = ts.do(t, c, http.MethodGet, "/cart", nil)
	var cartResp CartResponseDTO
	decodeBody(t, resp, &cartResp)
	assert.Empty(t, cartResp.Items)

	resp = ts.do(t, c, http.MethodPost, "/cart/checkout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty CheckoutResponseDTO
	decodeBody(t, resp, &empty)
	assert.Equal(t, "EMPTY_CART", empty.Outcome)
	assert.Nil(t, empty.Order)

	resp = ts.do(t, c, http.MethodGet, "/orders", nil)
	var orders []domain.Order
	decodeBody(t, resp, &orders)
	assert.Len(t, orders, 1)

	// orders are private to their owner
	stranger := ts.customer(t, "stranger@test.local")
	resp = ts.do(t, stranger, http.MethodGet, fmt.Sprintf("/orders/%d", placed.Order.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.customer(t, "buyer@test.local")
	lego := ts.productID(t, "Lego")

	qty := 16
	ts.do(t, c, http.MethodPost, "/cart/items", AddItemRequestDTO{ProductID: lego, Quantity: &qty})

	resp := ts.do(t, c, http.MethodPost, "/cart/checkout", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "Not enough stock for Lego Race Car", errResp.Error)

	p, err := ts.repo.GetProduct(context.Background(), lego)
	require.NoError(t, err)
	assert.Equal(t, 15, p.Stock)

	resp = ts.do(t, c, http.MethodGet, "/cart", nil)
	var cartResp CartResponseDTO
	decodeBody(t, resp, &cartResp)
	assert.Equal(t, 16, cartResp.Count)
}

func TestAdmin_RequiresOwner(t *testing.T) {
	ts := newTestServer(t, 100)

	resp := ts.do(t, ts.browser(t), http.MethodGet, "/admin/products", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, ts.customer(t, "buyer@test.local"), http.MethodGet, "/admin/products", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func productForm(t *testing.T, fields map[string]string, filename string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) sendForm(t *testing.T, c *http.Client, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	ts := newTestServer(t, 100)
	owner := ts.browser(t)
	ts.login(t, owner, ownerEmail, ownerPassword)

	image := []byte("\x89PNG\r\n\x1a\nfake")
	body, ct := productForm(t, map[string]string{
		"name":        "Chess Set",
		"category":    "Game",
		"price":       "19.50",
		"stock":       "8",
		"description": "Wooden pieces.",
	}, "chess.PNG", image)

	resp := ts.sendForm(t, owner, http.MethodPost, "/admin/products", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created domain.Product
	decodeBody(t, resp, &created)
	assert.True(t, strings.HasPrefix(created.ImageURL, "/uploads/products/"))
	assert.True(t, strings.HasSuffix(created.ImageURL, ".png"))

	resp = ts.do(t, owner, http.MethodGet, created.ImageURL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	served, _ := io.ReadAll(resp.Body)
	assert.Equal(t, image, served)

	// shoppers see the new product immediately
	resp = ts.do(t, ts.browser(t), http.MethodGet, fmt.Sprintf("/shop/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, ct = productForm(t, map[string]string{
		"name":     "Chess Set Deluxe",
		"category": "Game",
		"price":    "29.50",
		"stock":    "4",
	}, "", nil)
	resp = ts.sendForm(t, owner, http.MethodPut, fmt.Sprintf("/admin/products/%d", created.ID), body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated domain.Product
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Chess Set Deluxe", updated.Name)
	assert.Equal(t, created.ImageURL, updated.ImageURL)

	resp = ts.do(t, owner, http.MethodDelete, fmt.Sprintf("/admin/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, owner, http.MethodGet, fmt.Sprintf("/admin/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, owner, http.MethodGet, created.ImageURL, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_ValidationErrors(t *testing.T) {
	ts := newTestServer(t, 100)
	owner := ts.browser(t)
	ts.login(t, owner, ownerEmail, ownerPassword)

	body, ct := productForm(t, map[string]string{
		"category": "Game",
		"price":    "abc",
		"stock":    "1",
	}, "", nil)
	resp := ts.sendForm(t, owner, http.MethodPost, "/admin/products", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var errResp ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "Price must be a number.", errResp.Fields["price"])
	assert.Equal(t, "Name is required.", errResp.Fields["name"])

	body, ct = productForm(t, map[string]string{
		"name":     "Mystery Box",
		"category": "Toy",
		"price":    "5",
		"stock":    "1",
	}, "box.bmp", []byte("BM"))
	resp = ts.sendForm(t, owner, http.MethodPost, "/admin/products", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errResp = ErrorResponse{}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "Only .jpg, .jpeg, .png, .gif, .webp are allowed.", errResp.Fields["image"])

	body, ct = productForm(t, map[string]string{
		"name":     "Mystery Box",
		"category": "Toy",
		"price":    "1.005",
		"stock":    "1",
	}, "", nil)
	resp = ts.sendForm(t, owner, http.MethodPost, "/admin/products", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errResp = ErrorResponse{}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "Price can have at most 2 decimal places.", errResp.Fields["price"])

	products, err := ts.repo.ListProducts(context.Background(), domain.ProductFilter{Query: "Mystery"})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestAccount_RegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t, 100)
	c := ts.browser(t)

	resp := ts.do(t, c, http.MethodPost, "/account/register", RegisterRequestDTO{Email: "new@test.local", Password: "secret1", FullName: "New"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var user UserDTO
	decodeBody(t, resp, &user)
	assert.Equal(t, domain.RoleCustomer, user.Role)

	resp = ts.do(t, c, http.MethodPost, "/account/register", RegisterRequestDTO{Email: "new@test.local", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, c, http.MethodPost, "/account/register", RegisterRequestDTO{Email: "short@test.local", Password: "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = ts.do(t, c, http.MethodPost, "/account/login", LoginRequestDTO{Email: "new@test.local", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, c, http.MethodPost, "/account/login", LoginRequestDTO{Email: "new@test.local", Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login LoginResponseDTO
	decodeBody(t, resp, &login)
	assert.NotEmpty(t, login.Token)

	resp = ts.do(t, c, http.MethodGet, "/account/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// bearer tokens work without cookies
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	bearerResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bearerResp.Body.Close()
	assert.Equal(t, http.StatusOK, bearerResp.StatusCode)

	resp = ts.do(t, c, http.MethodPost, "/account/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, c, http.MethodGet, "/account/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAccount_LoginRateLimited(t *testing.T) {
	ts := newTestServer(t, 2)
	c := ts.browser(t)

	creds := LoginRequestDTO{Email: ownerEmail, Password: "wrong"}
	for i := 0; i < 2; i++ {
		resp := ts.do(t, c, http.MethodPost, "/account/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp := ts.do(t, c, http.MethodPost, "/account/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

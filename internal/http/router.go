package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. All fields except Health are required.
type Deps struct {
	Catalog  CatalogService
	Carts    CartService
	Checkout CheckoutService
	Orders   OrderReader
	Admin    AdminService
	Identity interface {
		IdentityService
		Authenticator
	}
	Health Pinger
	Log    logrus.FieldLogger

	RequestTimeout    time.Duration
	UploadsDir        string
	MaxUploadBytes    int64
	SessionCookieName string
	SecureCookies     bool
	LoginRatePerMin   int
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	shop := NewShopHandler(d.Catalog, d.RequestTimeout, d.Log)
	carts := NewCartHandler(d.Carts, d.RequestTimeout, d.Log)
	checkout := NewCheckoutHandler(d.Checkout, d.Orders, d.RequestTimeout, d.Log)
	products := NewAdminHandler(d.Admin, d.MaxUploadBytes, d.RequestTimeout, d.Log)
	account := NewAccountHandler(d.Identity, d.SecureCookies, d.RequestTimeout, d.Log)
	loginLimiter := NewRateLimiter(d.LoginRatePerMin)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health.Ping(r.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", staticFiles(d.UploadsDir)))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(d.SessionCookieName, d.SecureCookies))
		r.Use(AuthMiddleware(d.Identity, d.Log))

		r.Route("/shop", func(r chi.Router) {
			r.Get("/", shop.ListProducts)
			r.Get("/{id}", shop.GetProduct)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.With(RequireUser).Post("/checkout", checkout.Checkout)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/checkout/success/{order_id}", checkout.Success)
			r.Get("/orders", checkout.ListOrders)
			r.Get("/orders/{order_id}", checkout.GetOrder)
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleOwner))
			r.Get("/", products.ListProducts)
			r.Post("/", products.CreateProduct)
			r.Get("/{id}", products.GetProduct)
			r.Put("/{id}", products.UpdateProduct)
			r.Delete("/{id}", products.DeleteProduct)
		})

		r.Route("/account", func(r chi.Router) {
			r.With(loginLimiter.Handler).Post("/register", account.Register)
			r.With(loginLimiter.Handler).Post("/login", account.Login)
			r.Post("/logout", account.Logout)
			r.With(RequireUser).Get("/me", account.Me)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

// staticFiles serves uploaded images without directory listings.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

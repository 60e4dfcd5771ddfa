package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/identity"
	"github.com/trinislearning/hit339/internal/logger"
)

const authCookieName = "auth_token"

// SessionMiddleware gives every browser a session id cookie and puts it in the request context.
func SessionMiddleware(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sid string
			if c, err := r.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sid = c.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sid,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(withSessionID(r.Context(), sid)))
		})
	}
}

type Authenticator interface {
	Authenticate(token string) (*identity.Principal, error)
}

// AuthMiddleware resolves the caller from a bearer token or the auth cookie.
// Missing or invalid tokens leave the request anonymous.
func AuthMiddleware(auth Authenticator, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if c, err := r.Cookie(authCookieName); err == nil {
					token = c.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := auth.Authenticate(token)
			if err != nil {
				logger.FromContext(r.Context(), log).WithError(err).Debug("ignoring invalid token")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getPrincipal(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := getPrincipal(r.Context())
			if p == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "login required")
				return
			}
			if !p.HasRole(role) {
				respondError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter throttles requests per client address.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// crude bound on memory; a reset only forgives throttled clients early
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			key = host
		}

		if !rl.getLimiter(key).Allow() {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one structured line per request.
func AccessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			logger.FromContext(r.Context(), log).WithFields(logrus.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request handled")
		})
	}
}

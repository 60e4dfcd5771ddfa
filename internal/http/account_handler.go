package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trinislearning/hit339/internal/domain"
	"github.com/trinislearning/hit339/internal/identity"
)

type IdentityService interface {
	Register(ctx context.Context, email, password, fullName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*identity.Session, error)
}

type AccountHandler struct {
	identity     IdentityService
	secureCookie bool
	timeout      time.Duration
	log          logrus.FieldLogger
}

func NewAccountHandler(svc IdentityService, secureCookie bool, timeout time.Duration, log logrus.FieldLogger) *AccountHandler {
	return &AccountHandler{
		identity:     svc,
		secureCookie: secureCookie,
		timeout:      timeout,
		log:          log,
	}
}

type RegisterRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID       int64       `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

type LoginResponseDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

// POST /account/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RegisterRequestDTO
	if !decodeJSONBody(w, r, &req) {
		return
	}

	u, err := h.identity.Register(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserDTO(u))
}

// POST /account/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSONBody(w, r, &req) {
		return
	}

	sess, err := h.identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, h.log, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, LoginResponseDTO{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      toUserDTO(sess.User),
	})
}

// POST /account/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// GET /account/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := getPrincipal(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": p.UserID,
		"role":    p.Role,
	})
}

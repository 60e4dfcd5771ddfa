package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/trinislearning/hit339/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const issuer = "storefront"

// Claims represents JWT claims. Subject carries the user id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller derived from a verified token.
type Principal struct {
	UserID int64
	Role   domain.Role
}

func (p *Principal) HasRole(role domain.Role) bool {
	return p != nil && p.Role == role
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for u and its expiry.
func (t *TokenIssuer) Issue(u *domain.User) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)

	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify validates the token and returns the caller it identifies.
func (t *TokenIssuer) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: id, Role: claims.Role}, nil
}

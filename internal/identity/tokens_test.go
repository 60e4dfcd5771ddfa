package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinislearning/hit339/internal/domain"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, expires, err := issuer.Issue(&domain.User{ID: 42, Role: domain.RoleOwner})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, domain.RoleOwner, p.Role)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, _, err := issuer.Issue(&domain.User{ID: 1, Role: domain.RoleCustomer})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("one", time.Hour).Issue(&domain.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		Role: domain.RoleOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Garbage(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffora/staffora/internal/rbac"
)

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	m := NewTokenManager("secret", "staffora", time.Minute)
	subject := rbac.Subject{UserID: "9", RoleID: rbac.RoleManager}

	token, err := m.Issue(subject)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Parse(token.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewTokenManager("secret", "someone-else", time.Minute)
	foreign, err := other.Issue(subject)
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Parse(foreign.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid, "issuer must match")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RoleID:           rbac.RoleAdministrator,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: "staffora", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m, err := NewManager("secret", "matchmaker", time.Hour)
	require.NoError(t, err)

	token, err := m.Issue("42")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Identity())
	assert.Equal(t, "matchmaker", claims.Issuer)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer, err := NewManager("secret-a", "", time.Hour)
	require.NoError(t, err)
	verifier, err := NewManager("secret-b", "", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("7")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewManager("secret", "", time.Minute, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := m.Issue("7")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m, err := NewManager("secret", "", time.Hour)
	require.NoError(t, err)

	_, err = m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRequiresExpiry(t *testing.T) {
	m, err := NewManager("secret", "", time.Hour)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "9"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAcceptsNumericLegacyID(t *testing.T) {
	m, err := NewManager("secret", "", time.Hour)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  1234,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := m.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "1234", claims.Identity())
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", "", time.Hour)
	assert.ErrorIs(t, err, ErrMissingKey)
}

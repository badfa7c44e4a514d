package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignParse_RoundTrip(t *testing.T) {
	j := NewJWT("s3cret", "im-core", time.Hour)

	tok, err := j.Sign(42)
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, int64(42), c.UserID)
	require.Equal(t, "im-core", c.Issuer)
	require.Equal(t, "42", c.Subject)
}

func TestParse_Rejects(t *testing.T) {
	j := NewJWT("s3cret", "im-core", time.Hour)
	good, err := j.Sign(7)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWT("other", "im-core", time.Hour).Parse(good)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewJWT("s3cret", "someone-else", time.Hour).Parse(good)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewJWT("s3cret", "im-core", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		tok, err := old.Sign(7)
		require.NoError(t, err)
		_, err = j.Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := j.Parse("not-a-token")
		require.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("unsigned alg none", func(t *testing.T) {
		claims := Claims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "im-core",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = j.Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		tok, err := j.Sign(0)
		require.NoError(t, err)
		_, err = j.Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

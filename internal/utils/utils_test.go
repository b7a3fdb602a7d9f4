package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "ADMIN", 15)
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "ADMIN", 15)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("s3cret", 1, "ADMIN", -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenHash(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}

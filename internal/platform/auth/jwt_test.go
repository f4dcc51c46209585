package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/platform/config"
)

func newTokenService() *TokenService {
	return NewTokenService(config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTokenService()

	token, err := svc.GenerateAccessToken(7, 3, "admin", "ada@acme.test")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, int64(3), claims.TenantID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := newTokenService()

	t.Run("expired", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(7, 3, "admin", "a@b.c")
		require.NoError(t, err)

		svc := newTokenService()
		svc.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService(config.JWTConfig{Secret: "other", AccessTokenTTL: time.Minute})
		token, err := other.GenerateAccessToken(7, 3, "admin", "a@b.c")
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("refresh token", func(t *testing.T) {
		token, err := svc.GenerateRefreshToken(7)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestTokenService_RefreshToken(t *testing.T) {
	svc := newTokenService()

	refresh, err := svc.GenerateRefreshToken(7)
	require.NoError(t, err)

	subject, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "7", subject)

	access, err := svc.GenerateAccessToken(7, 3, "admin", "a@b.c")
	require.NoError(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)
}

package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func createTestTokenService(t *testing.T) *TokenServiceImpl {
	t.Helper()
	svc, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	return svc.(*TokenServiceImpl)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		ttl         time.Duration
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", ttl: time.Hour, secretKey: testSecret},
		{name: "missing secret key", ttl: time.Hour, secretKey: "", expectError: true},
		{name: "zero ttl falls back to default", ttl: 0, secretKey: testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewTokenService(tt.ttl, "issuer", "audience", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	svc := createTestTokenService(t)

	token, expiresAt, err := svc.GenerateAdminToken("operator")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, adminTokenType, claims.TokenType)
	assert.Len(t, claims.TokenID, 32)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestValidateAdminTokenFailures(t *testing.T) {
	svc := createTestTokenService(t)

	t.Run("expired", func(t *testing.T) {
		past := svc.now().Add(-time.Hour)
		svc.now = func() time.Time { return past }
		token, _, err := svc.GenerateAdminToken("operator")
		require.NoError(t, err)
		svc.now = time.Now

		_, err = svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, "test-issuer", "test-audience", "another-secret")
		require.NoError(t, err)
		token, _, err := other.GenerateAdminToken("operator")
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong audience", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, "test-issuer", "someone-else", testSecret)
		require.NoError(t, err)
		token, _, err := other.GenerateAdminToken("operator")
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("wrong token type", func(t *testing.T) {
		now := time.Now()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":        "operator",
			"token_type": "refresh",
			"jti":        "x",
			"iat":        now.Unix(),
			"exp":        now.Add(time.Hour).Unix(),
			"iss":        "test-issuer",
			"aud":        "test-audience",
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAdminToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator_ValidateToken(t *testing.T) {
	validator, err := NewJWTValidator(JWTConfig{SecretKey: "s3cret", Issuer: "recipes"})
	require.NoError(t, err)

	valid, err := GenerateToken("s3cret", "recipes", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("s3cret", "recipes", "alice", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := GenerateToken("other", "recipes", "alice", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := GenerateToken("s3cret", "elsewhere", "alice", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	t.Run("bearer prefix", func(t *testing.T) {
		claims, err := validator.ValidateToken("Bearer " + valid)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.UserID())
	})

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "Bearer ", ErrMissingToken},
		{"expired", expired, ErrExpiredToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"wrong issuer", wrongIssuer, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"no subject", noSubject, ErrInvalidClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClaims_UserIDFallsBackToUsername(t *testing.T) {
	claims := &Claims{Username: "bob"}
	assert.Equal(t, "bob", claims.UserID())
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "alice"})
	user, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.UserID)
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{})
	assert.Error(t, err)
}

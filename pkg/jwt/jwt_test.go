package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("test-secret-key-123456789", time.Hour)
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := newTestService()
	userID := uuid.New()

	token, err := service.GenerateToken(userID, "+256772123456", []string{"passenger"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "+256772123456", claims.Phone)
	assert.Equal(t, []string{"passenger"}, claims.Roles)
	assert.Equal(t, "swiftbus-booking", claims.Issuer)
	assert.False(t, claims.IsAdmin())
}

func TestValidateToken_WrongSecret(t *testing.T) {
	service := newTestService()
	other := NewService("different-secret", time.Hour)

	token, err := service.GenerateToken(uuid.New(), "+256772123456", []string{"passenger"})
	require.NoError(t, err)

	claims, err := other.ValidateToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestValidateToken_Expired(t *testing.T) {
	service := NewService("test-secret-key-123456789", -time.Minute)

	token, err := service.GenerateToken(uuid.New(), "+256772123456", []string{"passenger"})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)
	assert.True(t, service.IsTokenExpired(token))
}

func TestValidateToken_Garbage(t *testing.T) {
	service := newTestService()

	claims, err := service.ValidateToken("not-a-token")
	assert.Error(t, err)
	assert.Nil(t, claims)
	assert.True(t, service.IsTokenExpired("not-a-token"))
}

func TestClaims_IsAdmin(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateToken(uuid.New(), "+256700000001", []string{"passenger", "admin"})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}

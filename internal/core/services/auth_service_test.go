package services

import (
	"testing"
	"time"

	"camrelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, err := svc.GenerateToken("night-shift", domain.RoleOperator)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "night-shift", claims.Subject)
	assert.Equal(t, domain.RoleOperator, claims.Role)

	assert.NoError(t, svc.Authorize(claims, domain.RoleViewer))
	assert.NoError(t, svc.Authorize(claims, domain.RoleOperator))
	assert.ErrorIs(t, svc.Authorize(claims, domain.RoleAdmin), ErrUnauthorized)
	assert.ErrorIs(t, svc.Authorize(nil, domain.RoleViewer), ErrUnauthorized)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)
	other := NewAuthService("other-secret", time.Hour)

	token, err := other.GenerateToken("intruder", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewAuthService("secret", -time.Minute)
	token, err = expired.GenerateToken("late", domain.RoleViewer)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthService_GenerateValidatesInput(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	_, err := svc.GenerateToken("", domain.RoleViewer)
	assert.Error(t, err)

	_, err = svc.GenerateToken("ok", domain.Role("root"))
	assert.Error(t, err)
}

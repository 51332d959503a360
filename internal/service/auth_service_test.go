package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{Secret: "secret", Issuer: "sma-identity", Audience: []string{"timetable"}})

	token, err := svc.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin, Email: "admin@school.id"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "sma-identity", claims.Issuer)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{Secret: "secret", Issuer: "sma-identity", Audience: []string{"timetable"}})

	expired, err := svc.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	other := NewAuthService(zap.NewNop(), AuthConfig{Secret: "other", Issuer: "sma-identity"})
	forged, err := other.IssueToken(models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	wrongAudience, err := svc.IssueToken(models.JWTClaims{
		UserID:           "user-1",
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"finance"}},
	}, time.Hour)
	require.NoError(t, err)

	anonymous, err := svc.IssueToken(models.JWTClaims{Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-token",
		"expired":        expired,
		"forged":         forged,
		"wrong audience": wrongAudience,
		"no user":        anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}

package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// editorFields appends the acting user to the fields of a grid-changing log line.
func editorFields(c *gin.Context, fields ...zap.Field) []zap.Field {
	claims := claimsFromContext(c)
	if claims == nil {
		return append(fields, zap.String("user_id", "unknown"))
	}
	return append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
}

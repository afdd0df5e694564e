package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/admissions-api/internal/middleware"
	"github.com/campushq/admissions-api/internal/models"
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

func actorFromContext(c *gin.Context) (id, name string) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", ""
	}
	return claims.UserID, claims.FullName
}

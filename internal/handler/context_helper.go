package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/middleware"
	"github.com/rotaops/rota-api/internal/models"
)

// claimsFromContext reads the claims the JWT middleware stored for this
// request. A nil result means the route ran without authentication.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// Package middleware holds the route guards: bearer token validation,
// role checks, and request metrics.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/service"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
	"github.com/rotaops/rota-api/pkg/response"
)

// ContextUserKey is the gin context key under which JWT stores the
// verified claims.
const ContextUserKey = "currentUser"

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}

// JWT rejects requests without a valid bearer access token and makes
// the verified claims available to handlers downstream.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			abort(c, appErrors.ErrUnauthorized)
			return
		}

		scheme, token, found := strings.Cut(raw, " ")
		if !found || token == "" || !strings.EqualFold(scheme, "Bearer") {
			abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

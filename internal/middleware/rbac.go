package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/models"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

// RequireRoles gates a route to the listed roles. It reads the claims
// JWT stored, so it must sit after JWT in the chain; without claims the
// request is rejected as unauthenticated rather than forbidden.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			abort(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			abort(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			abort(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
			return
		}

		c.Next()
	}
}

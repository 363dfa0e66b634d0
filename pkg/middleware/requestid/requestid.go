// Package requestid tags every request with an ID that flows through
// the access log and back to the client, so a support ticket quoting
// the header can be matched to log lines.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware reuses the caller-supplied X-Request-ID when present and
// mints a UUID otherwise. The ID is echoed on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerKey)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(headerKey, reqID)

		c.Next()
	}
}

// Value returns the request ID for the current request, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

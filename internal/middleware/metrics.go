package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rotaops/rota-api/internal/service"
)

// Metrics records one observation per request, labeled by the route
// template so path parameters do not explode label cardinality. The
// metrics endpoint itself is skipped to keep scrape traffic out of the
// series.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

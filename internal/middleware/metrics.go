package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vidyahq/fees-api/internal/service"
)

// Metrics records method, route, status and latency for every request.
// A nil service disables collection without changing the route setup.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// FullPath keeps the route template so cardinality stays
		// bounded; unmatched routes fall back to the raw path.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records completed HTTP requests.
type RequestObserver interface {
	HTTPRequest(method, route string, code int, elapsed time.Duration)
}

// Metrics middleware reports request latency by route template, so
// /products/:id is one series regardless of the id.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.HTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"raccolta/pkg/logger"
)

// RequestObserver records request metrics.
type RequestObserver interface {
	ObserveRequest(method, path string, status int, d time.Duration)
}

// Logger logs every request with timing and status and feeds obs when set.
func Logger(log *logger.Logger, obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if obs != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request.Method, route, status, latency)
		}

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

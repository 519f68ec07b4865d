package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessMiddleware logs one line per request. Proxied requests also carry the
// cache strategy that served them.
func AccessMiddleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if s := c.Writer.Header().Get("X-Cache-Strategy"); s != "" {
			attrs = append(attrs, "strategy", s, "cache", c.Writer.Header().Get("X-Cache"))
		}
		l.Debug("http_access", attrs...)
	}
}

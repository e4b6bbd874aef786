package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/ctxutil"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// RequestLogger logs one line per request. Paths in skip (health probes, scrapes) are
// logged at debug.
func RequestLogger(log *logger.Logger, skip ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		quiet[p] = struct{}{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := append([]interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}, ctxutil.LogFields(c.Request.Context())...)

		if _, ok := quiet[path]; ok && status < 400 {
			log.Debug("HTTP request", fields...)
			return
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
)

// Metrics records request counts and latency by route when metrics are enabled.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveAPI(c.Request.Method, c.FullPath(), observability.StatusLabel(c.Writer.Status()), time.Since(start))
	}
}

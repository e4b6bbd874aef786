package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
)

type MetricsHandler struct {
	metrics *observability.Metrics
}

func NewMetricsHandler(m *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Scrape writes the Prometheus text exposition.
func (h *MetricsHandler) Scrape(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.WriteHTTP(c.Writer, c.Request)
}

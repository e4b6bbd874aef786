package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/mmdev2003/real-estate-ai-tg-bot/internal/http/handlers"
	httpMW "github.com/mmdev2003/real-estate-ai-tg-bot/internal/http/middleware"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	HealthHandler  *httpH.HealthHandler
	WebhookHandler *httpH.WebhookHandler
	MetricsHandler *httpH.MetricsHandler

	WebhookPath string
	MetricsPath string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, "/healthcheck", cfg.MetricsPath))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Metrics
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		r.GET(cfg.MetricsPath, cfg.MetricsHandler.Scrape)
	}

	// Telegram
	if cfg.WebhookHandler != nil && cfg.WebhookPath != "" {
		r.POST(cfg.WebhookPath, cfg.WebhookHandler.Receive)
	}

	return r
}

package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/bot"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	httpx "github.com/mmdev2003/real-estate-ai-tg-bot/internal/http"
	httpH "github.com/mmdev2003/real-estate-ai-tg-bot/internal/http/handlers"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Webhook *httpH.WebhookHandler
	Metrics *httpH.MetricsHandler
}

func wireHandlers(log *logger.Logger, cfg *config.Config, storage Storage, runner *bot.Runner, m *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	deps := map[string]httpH.Pinger{}
	if storage.DB != nil {
		deps["database"] = httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := storage.DB.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	if storage.Redis != nil {
		deps["redis"] = httpH.PingFunc(func(ctx context.Context) error {
			return storage.Redis.Ping(ctx).Err()
		})
	}
	h := Handlers{Health: httpH.NewHealthHandler(deps)}
	if cfg.Telegram.Mode == "webhook" {
		h.Webhook = httpH.NewWebhookHandler(log, runner, cfg.HTTP.WebhookSecret)
	}
	if m != nil {
		h.Metrics = httpH.NewMetricsHandler(m)
	}
	return h
}

func wireServer(log *logger.Logger, cfg *config.Config, handlers Handlers, m *observability.Metrics) *httpx.Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		Metrics:        m,
		ServiceName:    cfg.OTel.ServiceName,
		HealthHandler:  handlers.Health,
		WebhookHandler: handlers.Webhook,
		MetricsHandler: handlers.Metrics,
		WebhookPath:    cfg.HTTP.WebhookPath,
		MetricsPath:    cfg.Metrics.Path,
	}, cfg.HTTP.Addr, cfg.HTTP.ReadHeaderTimeout.Duration)
}

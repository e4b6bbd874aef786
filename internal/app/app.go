package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/bot"
	botmw "github.com/mmdev2003/real-estate-ai-tg-bot/internal/bot/middleware"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/db"
	httpx "github.com/mmdev2003/real-estate-ai-tg-bot/internal/http"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/services/prompts"
)

type App struct {
	Log     *logger.Logger
	Cfg     *config.Config
	Metrics *observability.Metrics
	Storage Storage
	Clients Clients
	Prompts *prompts.Service
	Funnel  *funnel.Funnel
	Runner  *bot.Runner
	Server  *httpx.Server

	otelShutdown func(context.Context) error
}

// NewLogger builds the process logger for cfg.Env.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func New(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, cfg.OTel, cfg.Env, cfg.Version)
	metrics := observability.Init(log, cfg.Metrics)

	storage, err := wireStorage(ctx, log, cfg, true)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	fail := func(err error) (*App, error) {
		storage.close(log)
		_ = otelShutdown(ctx)
		return nil, err
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		return fail(err)
	}
	promptSvc, err := prompts.New(cfg.Prompts, log)
	if err != nil {
		return fail(fmt.Errorf("init prompts: %w", err))
	}
	f, err := wireFunnel(log, cfg, storage, clients, promptSvc)
	if err != nil {
		return fail(err)
	}

	chain := botmw.New(f, botmw.Gate{
		Members:     clients.Telegram,
		ChannelID:   cfg.Telegram.ChannelID,
		ChannelLink: cfg.Telegram.ChannelLink,
	}, metrics)
	runner := bot.NewRunner(chain, cfg.Telegram.Workers, cfg.Telegram.UpdateTimeout.Duration, log)

	handlers := wireHandlers(log, cfg, storage, runner, metrics)
	server := wireServer(log, cfg, handlers, metrics)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Storage:      storage,
		Clients:      clients,
		Prompts:      promptSvc,
		Funnel:       f,
		Runner:       runner,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled: the HTTP server always, long polling in polling
// mode, plus the prompt watcher and metric collectors. In-flight updates are drained
// before it returns.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.prepareTransport(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Metrics != nil {
		if a.Storage.DB != nil {
			a.Metrics.StartPostgresCollector(gctx, a.Log, a.Storage.DB.DB())
		}
		if a.Storage.Redis != nil {
			a.Metrics.StartRedisCollector(gctx, a.Log, a.Storage.Redis)
		}
	}
	if a.Cfg.Prompts.Watch {
		g.Go(func() error {
			if err := a.Prompts.Watch(gctx); err != nil {
				a.Log.Warn("Prompt watcher stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return a.Server.Run(gctx, a.Cfg.HTTP.ShutdownTimeout.Duration)
	})
	if a.Cfg.Telegram.Mode == "polling" {
		g.Go(func() error {
			return a.Runner.Poll(gctx, a.Clients.Telegram, a.Cfg.Telegram.PollTimeout.Duration)
		})
	}
	a.Log.Info("Bot started", "mode", a.Cfg.Telegram.Mode, "addr", a.Cfg.HTTP.Addr, "workers", a.Cfg.Telegram.Workers)

	err := g.Wait()
	a.Runner.Wait()
	return err
}

func (a *App) prepareTransport(ctx context.Context) error {
	tg := a.Clients.Telegram
	switch a.Cfg.Telegram.Mode {
	case "polling":
		if err := tg.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
	case "webhook":
		url := strings.TrimSpace(a.Cfg.Telegram.WebhookURL)
		if url == "" {
			a.Log.Info("Webhook url not configured; assuming it is registered")
			return nil
		}
		if err := tg.SetWebhook(ctx, url, a.Cfg.HTTP.WebhookSecret); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
	}
	a.Storage.close(a.Log)
	a.Log.Sync()
}

// Migrate creates or updates the SQL schema.
func Migrate(log *logger.Logger, cfg *config.Config) error {
	if cfg.Storage.Driver == "memory" {
		log.Info("Memory storage has no schema")
		return nil
	}
	svc, err := db.Open(cfg.Storage, log)
	if err != nil {
		return &StorageBootstrapError{Code: StorageBootstrapErrorConnectFailed, Driver: cfg.Storage.Driver, Cause: err}
	}
	defer func() { _ = svc.Close() }()
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		return &StorageBootstrapError{Code: StorageBootstrapErrorMigrateFailed, Driver: cfg.Storage.Driver, Cause: err}
	}
	log.Info("Schema migrated", "driver", cfg.Storage.Driver)
	return nil
}

// SetCommands registers the bot command menu.
func SetCommands(ctx context.Context, log *logger.Logger, cfg *config.Config) error {
	clients, err := wireClients(log, cfg)
	if err != nil {
		return err
	}
	if err := clients.Telegram.SetMyCommands(ctx, funnel.Commands()); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	log.Info("Bot commands registered", "count", len(funnel.Commands()))
	return nil
}

package app

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/listing"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/openai"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/report"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

type Clients struct {
	Telegram   *telegram.Client
	LLM        *openai.Client
	CRM        *crm.Client
	Listings   *listing.Client
	Calculator *finance.Client
	Reports    *report.Client
}

func wireClients(log *logger.Logger, cfg *config.Config) (Clients, error) {
	log.Info("Wiring clients...")
	// Outbound calls carry the update span. Bot API urls embed the token, so the
	// Telegram client stays uninstrumented.
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	tg, err := telegram.New(cfg.Telegram, log, &http.Client{})
	if err != nil {
		return Clients{}, fmt.Errorf("init telegram client: %w", err)
	}
	llm, err := openai.New(cfg.LLM, log, httpClient)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	return Clients{
		Telegram:   tg,
		LLM:        llm,
		CRM:        crm.New(cfg.CRM, log, httpClient),
		Listings:   listing.New(cfg.Services.Listing, httpClient),
		Calculator: finance.New(cfg.Services.Calculator, httpClient),
		Reports:    report.New(cfg.Services.Report, httpClient),
	}, nil
}

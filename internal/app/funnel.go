package app

import (
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/services/prompts"
)

func wireFunnel(log *logger.Logger, cfg *config.Config, storage Storage, clients Clients, promptSvc *prompts.Service) (*funnel.Funnel, error) {
	log.Info("Wiring funnel...")
	f, err := funnel.New(funnel.Deps{
		Log:        log,
		States:     storage.States,
		LLM:        clients.LLM,
		History:    storage.History,
		CRM:        clients.CRM,
		Listings:   clients.Listings,
		Calculator: clients.Calculator,
		Reports:    clients.Reports,
		Prompts:    promptSvc,
		Transport:  clients.Telegram,
		Settings:   funnel.SettingsFromConfig(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("init funnel: %w", err)
	}
	return f, nil
}

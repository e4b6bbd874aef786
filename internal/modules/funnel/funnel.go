package funnel

import (
	"errors"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/repos/state"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Settings are the init-time knobs of the funnel.
type Settings struct {
	Pipelines    config.CRMPipelines
	Statuses     config.CRMStatuses
	Thresholds   config.EngagementConfig
	Temperatures map[string]float64
	// ListingLinkBase prefixes estate ids in links logged for managers.
	ListingLinkBase string
}

// SettingsFromConfig picks the funnel settings out of the process config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Pipelines:       cfg.CRM.Pipelines,
		Statuses:        cfg.CRM.Statuses,
		Thresholds:      cfg.Engagement,
		Temperatures:    cfg.LLM.Temperatures,
		ListingLinkBase: cfg.Services.ListingLinkBase,
	}
}

type Deps struct {
	Log *logger.Logger

	States     state.UserStateRepo
	LLM        LLM
	History    ConversationLog
	CRM        CRM
	Listings   Listings
	Calculator Calculator
	Reports    Reports
	Prompts    Prompts
	Transport  Transport

	Settings Settings
}

func (d Deps) validate() error {
	switch {
	case d.Log == nil:
		return errors.New("funnel: missing logger")
	case d.States == nil:
		return errors.New("funnel: missing state store")
	case d.LLM == nil || d.History == nil || d.Prompts == nil:
		return errors.New("funnel: missing llm dependencies")
	case d.CRM == nil:
		return errors.New("funnel: missing crm client")
	case d.Listings == nil || d.Calculator == nil || d.Reports == nil:
		return errors.New("funnel: missing listing/calculator/report clients")
	case d.Transport == nil:
		return errors.New("funnel: missing transport")
	}
	return nil
}

// Funnel bundles the core components wired over one set of collaborators.
type Funnel struct {
	Engagement *Engagement
	Dispatcher *Dispatcher
	Router     *Router
	Controller *Controller

	deps Deps
}

// Deps returns the collaborators the funnel was built with.
func (f *Funnel) Deps() Deps { return f.deps }

func New(deps Deps) (*Funnel, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	eng := &Engagement{
		crm:        deps.CRM,
		pipelines:  deps.Settings.Pipelines,
		statuses:   deps.Settings.Statuses,
		thresholds: deps.Settings.Thresholds,
		log:        deps.Log.With("component", "EngagementTracker"),
	}
	disp := &Dispatcher{deps: deps, engagement: eng, log: deps.Log.With("component", "EffectDispatcher")}
	router := &Router{deps: deps, dispatcher: disp, log: deps.Log.With("component", "PersonaRouter")}
	ctrl := &Controller{deps: deps, router: router, dispatcher: disp, log: deps.Log.With("component", "Controller")}
	return &Funnel{Engagement: eng, Dispatcher: disp, Router: router, Controller: ctrl, deps: deps}, nil
}

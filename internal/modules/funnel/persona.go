package funnel

import (
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

// FinishTag names a structured action a persona may request.
type FinishTag string

const (
	FinishStartSearch    FinishTag = "start_estate_search"
	FinishNextOffer      FinishTag = "next_offer_estate_search"
	FinishFinishedOffice FinishTag = "calc_finished_office"
	FinishFinishedRetail FinishTag = "calc_finished_retail"
	FinishBuildingOffice FinishTag = "calc_building_office"
	FinishBuildingRetail FinishTag = "calc_building_retail"
)

// Prompt keys outside the persona table.
const (
	promptOfferDescription = "offer_description"
	promptChatSummary      = "chat_summary"
)

type personaSpec struct {
	promptKey   string
	temperature float64
	tier        dialog.Tier
	switches    []dialog.Persona
	finishes    []FinishTag
}

var personaTable = map[dialog.Persona]personaSpec{
	dialog.PersonaIntro: {
		promptKey:   "intro",
		temperature: 0.7,
		tier:        dialog.TierDefault,
		switches: []dialog.Persona{
			dialog.PersonaMarketExpert,
			dialog.PersonaListingSearch,
			dialog.PersonaReturnsCalculator,
			dialog.PersonaManagerHandoff,
		},
	},
	dialog.PersonaMarketExpert: {
		promptKey:   "market",
		temperature: 0.1,
		tier:        dialog.TierHigh,
		switches: []dialog.Persona{
			dialog.PersonaIntro,
			dialog.PersonaListingSearch,
			dialog.PersonaReturnsCalculator,
			dialog.PersonaManagerHandoff,
		},
	},
	dialog.PersonaListingSearch: {
		promptKey:   "search",
		temperature: 0.1,
		tier:        dialog.TierHigh,
		switches: []dialog.Persona{
			dialog.PersonaIntro,
			dialog.PersonaMarketExpert,
			dialog.PersonaReturnsCalculator,
			dialog.PersonaContactCollector,
			dialog.PersonaManagerHandoff,
		},
		finishes: []FinishTag{FinishStartSearch, FinishNextOffer},
	},
	dialog.PersonaReturnsCalculator: {
		promptKey:   "calc",
		temperature: 0.1,
		tier:        dialog.TierHigh,
		switches: []dialog.Persona{
			dialog.PersonaIntro,
			dialog.PersonaMarketExpert,
			dialog.PersonaListingSearch,
			dialog.PersonaManagerHandoff,
		},
		finishes: []FinishTag{FinishFinishedOffice, FinishFinishedRetail, FinishBuildingOffice, FinishBuildingRetail},
	},
	dialog.PersonaContactCollector: {
		promptKey:   "contact",
		temperature: 0.6,
		tier:        dialog.TierDefault,
		switches: []dialog.Persona{
			dialog.PersonaIntro,
			dialog.PersonaManagerHandoff,
		},
	},
	// ManagerHandoff answers with canned text and never reaches the model.
	dialog.PersonaManagerHandoff: {},
}

func lookupPersona(p dialog.Persona) (personaSpec, bool) {
	spec, ok := personaTable[p]
	return spec, ok
}

func (s personaSpec) llmBacked() bool { return s.promptKey != "" }

// permits reports whether a persona may emit the control carried by r.
func (s personaSpec) permits(r Reply) bool {
	switch r.Intent {
	case IntentSwitch:
		for _, p := range s.switches {
			if p == r.Target {
				return true
			}
		}
		return false
	case IntentFinish:
		for _, t := range s.finishes {
			if t == r.Tag {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// temperatureFor applies configured overrides keyed by prompt key.
func (s personaSpec) temperatureFor(overrides map[string]float64) float64 {
	if t, ok := overrides[s.promptKey]; ok {
		return t
	}
	return s.temperature
}

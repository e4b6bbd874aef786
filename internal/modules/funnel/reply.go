package funnel

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

type Intent int

const (
	IntentPlainText Intent = iota
	IntentSwitch
	IntentFinish
)

func (i Intent) String() string {
	switch i {
	case IntentSwitch:
		return "switch"
	case IntentFinish:
		return "finish"
	default:
		return "plain_text"
	}
}

// Reply is a persona reply parsed once into exactly one intent. Nothing downstream
// looks at Raw to decide what to do.
type Reply struct {
	Raw     string
	Intent  Intent
	Target  dialog.Persona
	Tag     FinishTag
	Payload json.RawMessage
}

type switchToken struct {
	token  string
	target dialog.Persona
}

// Table order decides ties between switch tokens.
var switchTokens = []switchToken{
	{token: "to_manager", target: dialog.PersonaManagerHandoff},
	{token: "to_market_expert", target: dialog.PersonaMarketExpert},
	{token: "to_estate_search", target: dialog.PersonaListingSearch},
	{token: "to_finance_model", target: dialog.PersonaReturnsCalculator},
	{token: "to_wewall_expert", target: dialog.PersonaIntro},
	{token: "to_contact_collector", target: dialog.PersonaContactCollector},
}

var finishTags = []FinishTag{
	FinishStartSearch,
	FinishNextOffer,
	FinishFinishedOffice,
	FinishFinishedRetail,
	FinishBuildingOffice,
	FinishBuildingRetail,
}

// ParseReply classifies raw model output. Switch tokens win over finish tags; a finish
// tag whose bracketed payload is not a JSON object is plain text.
func ParseReply(raw string) Reply {
	lower := strings.ToLower(raw)
	for _, st := range switchTokens {
		if strings.Contains(lower, st.token) {
			return Reply{Raw: raw, Intent: IntentSwitch, Target: st.target}
		}
	}
	for _, tag := range finishTags {
		if !strings.Contains(lower, string(tag)) {
			continue
		}
		payload, ok := extractPayload(raw)
		if !ok {
			return Reply{Raw: raw, Intent: IntentPlainText}
		}
		return Reply{Raw: raw, Intent: IntentFinish, Tag: tag, Payload: payload}
	}
	return Reply{Raw: raw, Intent: IntentPlainText}
}

// extractPayload takes the text between the first '[' and the next ']'.
func extractPayload(raw string) (json.RawMessage, bool) {
	start := strings.IndexByte(raw, '[')
	if start < 0 {
		return nil, false
	}
	end := strings.IndexByte(raw[start+1:], ']')
	if end < 0 {
		return nil, false
	}
	body := bytes.TrimSpace([]byte(raw[start+1 : start+1+end]))
	if len(body) == 0 || body[0] != '{' || !json.Valid(body) {
		return nil, false
	}
	return json.RawMessage(body), true
}

func (r Reply) control() string {
	switch r.Intent {
	case IntentSwitch:
		return "switch to " + string(r.Target)
	case IntentFinish:
		return "finish " + string(r.Tag)
	default:
		return "plain text"
	}
}

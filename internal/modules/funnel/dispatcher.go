package funnel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/openai"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/dbctx"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

const (
	summaryTemperature     = 0.2
	descriptionTemperature = 0.3
)

// Dispatcher turns parsed replies and button presses into effects on the collaborators.
// Effects run in a fixed order: CRM stage updates, state mutations, outbound messages,
// media, log appends.
type Dispatcher struct {
	deps       Deps
	engagement *Engagement
	log        *logger.Logger
}

func dbc(ctx context.Context) dbctx.Context { return dbctx.Context{Ctx: ctx} }

func (d *Dispatcher) Dispatch(ctx context.Context, st *dialog.UserState, r Reply) error {
	switch r.Intent {
	case IntentSwitch:
		return d.Transition(ctx, st, r.Target)
	case IntentFinish:
		return d.finish(ctx, st, r)
	default:
		return d.sendPlain(ctx, st.ChatID, r.Raw, nil)
	}
}

func (d *Dispatcher) finish(ctx context.Context, st *dialog.UserState, r Reply) error {
	switch r.Tag {
	case FinishStartSearch:
		var params dialog.SearchParams
		if err := json.Unmarshal(r.Payload, &params); err != nil {
			return d.demote(ctx, st, r, err)
		}
		if !params.Valid() {
			return d.demote(ctx, st, r, fmt.Errorf("search params out of range"))
		}
		return d.StartSearch(ctx, st, params)
	case FinishNextOffer:
		var p struct {
			Target string `json:"target"`
		}
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return d.demote(ctx, st, r, err)
		}
		switch p.Target {
		case "", "offer":
			return d.Advance(ctx, st, false)
		case "estate":
			return d.Advance(ctx, st, true)
		default:
			return d.demote(ctx, st, r, fmt.Errorf("unknown paging target %q", p.Target))
		}
	case FinishFinishedOffice, FinishFinishedRetail, FinishBuildingOffice, FinishBuildingRetail:
		var params finance.Params
		if err := json.Unmarshal(r.Payload, &params); err != nil {
			return d.demote(ctx, st, r, err)
		}
		return d.Calculate(ctx, st, finance.Variant(strings.TrimPrefix(string(r.Tag), "calc_")), params)
	default:
		return apperr.Wrap(apperr.ErrInvariant, "dispatch finish", fmt.Errorf("unknown tag %q", r.Tag))
	}
}

// demote surfaces a finish reply whose payload does not fit its action as plain text.
func (d *Dispatcher) demote(ctx context.Context, st *dialog.UserState, r Reply, cause error) error {
	d.log.Warn("Finish payload rejected, sending reply as text",
		"chat_id", st.ChatID, "tag", r.Tag, "error", apperr.Wrap(apperr.ErrMalformed, "decode payload", cause))
	return d.sendPlain(ctx, st.ChatID, r.Raw, nil)
}

// sendPlain delivers one dialog reply: one message, one CRM import, one assistant turn.
func (d *Dispatcher) sendPlain(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error {
	if err := d.deps.Transport.SendMessage(ctx, chatID, text, kb); err != nil {
		return err
	}
	d.importMessage(ctx, chatID, text, true)
	return d.deps.History.Append(ctx, chatID, dialog.RoleAssistant, text)
}

// importMessage mirrors text into the CRM chat. The user already has the reply, so a
// failed import is logged and dropped.
func (d *Dispatcher) importMessage(ctx context.Context, chatID int64, text string, fromBot bool) {
	if err := d.deps.CRM.ImportMessage(ctx, chatID, text, fromBot); err != nil {
		d.log.Warn("CRM import failed", "chat_id", chatID, "error", err)
	}
}

// speak feeds a canned user turn to persona p and sends the reply as dialog text.
func (d *Dispatcher) speak(ctx context.Context, chatID int64, p dialog.Persona, prompt string, kb *telegram.InlineKeyboardMarkup) error {
	if err := d.deps.History.Append(ctx, chatID, dialog.RoleUser, prompt); err != nil {
		return err
	}
	reply, err := complete(ctx, d.deps, chatID, p)
	if err != nil {
		return err
	}
	return d.sendPlain(ctx, chatID, reply, kb)
}

func (d *Dispatcher) observe(ctx context.Context, chatID int64, snap dialog.CounterSnapshot) {
	if err := d.engagement.Observe(ctx, chatID, snap); err != nil {
		d.log.Warn("Engagement escalation failed", "chat_id", chatID, "error", err)
	}
}

// summarize condenses the chat's log for a manager; "" when there is nothing to condense.
func (d *Dispatcher) summarize(ctx context.Context, chatID int64) (string, error) {
	history, err := d.deps.History.History(ctx, chatID)
	if err != nil || len(history) == 0 {
		return "", err
	}
	system, err := d.deps.Prompts.Get(ctx, promptChatSummary)
	if err != nil {
		return "", err
	}
	return d.deps.LLM.Generate(ctx, openai.Request{
		System:      system,
		History:     history,
		Temperature: summaryTemperature,
		Tier:        dialog.TierDefault,
	})
}

// describe asks the model for a short client-facing text about one offer.
func (d *Dispatcher) describe(ctx context.Context, o dialog.Offer) (string, error) {
	system, err := d.deps.Prompts.Get(ctx, promptOfferDescription)
	if err != nil {
		return "", err
	}
	record, err := json.Marshal(o)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrInvariant, "describe offer", err)
	}
	return d.deps.LLM.Generate(ctx, openai.Request{
		System:      system,
		History:     []dialog.Turn{{Role: dialog.RoleUser, Text: string(record)}},
		Temperature: descriptionTemperature,
		Tier:        dialog.TierDefault,
	})
}

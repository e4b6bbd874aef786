package funnel

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/openai"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Router runs the active persona over user text and hands the parsed reply to the dispatcher.
type Router struct {
	deps       Deps
	dispatcher *Dispatcher
	log        *logger.Logger
}

func (r *Router) Handle(ctx context.Context, st *dialog.UserState, text string) error {
	if st == nil {
		return apperr.Wrap(apperr.ErrInvariant, "route", fmt.Errorf("missing state"))
	}
	if st.TransferredToHuman {
		// A manager owns the dialog; the CRM mirror already relayed the text.
		return nil
	}
	spec, ok := lookupPersona(st.Persona)
	if !ok {
		return apperr.Wrap(apperr.ErrInvariant, "route", fmt.Errorf("unknown persona %q", st.Persona))
	}
	if !spec.llmBacked() {
		return r.deps.Transport.SendMessage(ctx, st.ChatID, textManagerWaiting, nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.Wrap(apperr.ErrInvalidArgument, "route", fmt.Errorf("empty text"))
	}

	if err := r.deps.History.Append(ctx, st.ChatID, dialog.RoleUser, text); err != nil {
		return err
	}
	raw, err := complete(ctx, r.deps, st.ChatID, st.Persona)
	if err != nil {
		return err
	}
	reply := ParseReply(raw)
	if !spec.permits(reply) {
		return apperr.Wrap(apperr.ErrInvariant, "route",
			fmt.Errorf("persona %s may not emit %s", st.Persona, reply.control()))
	}
	r.log.Debug("Persona replied", "chat_id", st.ChatID, "persona", st.Persona, "intent", reply.Intent.String())
	return r.dispatcher.Dispatch(ctx, st, reply)
}

// complete runs persona p over the chat's current conversation log.
func complete(ctx context.Context, deps Deps, chatID int64, p dialog.Persona) (string, error) {
	spec, ok := lookupPersona(p)
	if !ok || !spec.llmBacked() {
		return "", apperr.Wrap(apperr.ErrInvariant, "complete", fmt.Errorf("persona %q has no model", p))
	}
	system, err := deps.Prompts.Get(ctx, spec.promptKey)
	if err != nil {
		return "", err
	}
	history, err := deps.History.History(ctx, chatID)
	if err != nil {
		return "", err
	}
	return deps.LLM.Generate(ctx, openai.Request{
		System:      system,
		History:     history,
		Temperature: spec.temperatureFor(deps.Settings.Temperatures),
		Tier:        spec.tier,
	})
}

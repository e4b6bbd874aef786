package funnel

import (
	"context"
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

// Transition switches the chat to target and lets the new persona open the dialog.
// Switching to ManagerHandoff hands the chat to a human instead.
func (d *Dispatcher) Transition(ctx context.Context, st *dialog.UserState, target dialog.Persona) error {
	return d.transition(ctx, st, target, "")
}

func (d *Dispatcher) transition(ctx context.Context, st *dialog.UserState, target dialog.Persona, opener string) error {
	if target == dialog.PersonaManagerHandoff {
		return d.Handoff(ctx, st)
	}
	spec, ok := lookupPersona(target)
	if !ok || !spec.llmBacked() {
		return apperr.Wrap(apperr.ErrInvariant, "transition", fmt.Errorf("no transition to %q", target))
	}
	if opener == "" {
		opener = bootstrapPrompts[target]
	}

	if err := d.deps.History.DeleteAll(ctx, st.ChatID); err != nil {
		return err
	}
	if err := d.deps.History.Append(ctx, st.ChatID, dialog.RoleUser, opener); err != nil {
		return err
	}
	reply, err := complete(ctx, d.deps, st.ChatID, target)
	if err != nil {
		return err
	}
	if err := d.deps.States.SetPersona(dbc(ctx), st.ID, target); err != nil {
		return err
	}
	from := st.Persona
	st.Persona = target
	observability.Current().IncPersonaTransition(string(from), string(target))
	d.log.Info("Persona switched", "chat_id", st.ChatID, "from", from, "to", target)

	var kb *telegram.InlineKeyboardMarkup
	if target == dialog.PersonaIntro {
		kb = StartKeyboard()
	}
	return d.sendPlain(ctx, st.ChatID, reply, kb)
}

// Handoff passes the chat to a human manager. The persona is left as is; the transferred
// flag stops automated replies and further escalations.
func (d *Dispatcher) Handoff(ctx context.Context, st *dialog.UserState) error {
	if st.TransferredToHuman {
		return d.deps.Transport.SendMessage(ctx, st.ChatID, textManagerWaiting, nil)
	}
	// The summary has to be taken before the log is cleared.
	summary, err := d.summarize(ctx, st.ChatID)
	if err != nil {
		d.log.Warn("Handoff without summary", "chat_id", st.ChatID, "error", err)
		summary = ""
	}
	if err := d.deps.History.DeleteAll(ctx, st.ChatID); err != nil {
		return err
	}
	s := d.deps.Settings
	if err := d.deps.CRM.EditLead(ctx, st.ChatID, s.Pipelines.Appeal, s.Statuses.ChatWithManager); err != nil {
		return err
	}
	if err := d.deps.States.MarkTransferred(dbc(ctx), st.ID); err != nil {
		return err
	}
	st.TransferredToHuman = true
	observability.Current().IncHandoff()
	observability.Current().IncPersonaTransition(string(st.Persona), string(dialog.PersonaManagerHandoff))
	d.log.Info("Chat handed to manager", "chat_id", st.ChatID, "persona", st.Persona)

	if err := d.deps.Transport.SendMessage(ctx, st.ChatID, textHandoff, nil); err != nil {
		return err
	}
	if summary != "" {
		d.importMessage(ctx, st.ChatID, summary, true)
	}
	return nil
}

// LikeOffer moves a user who liked the current offer to the contact collector.
func (d *Dispatcher) LikeOffer(ctx context.Context, st *dialog.UserState) error {
	if d.stale(st) {
		d.log.Debug("Ignoring stale like", "chat_id", st.ChatID, "persona", st.Persona)
		return nil
	}
	sess, err := d.deps.States.GetSearchSession(dbc(ctx), st.ID)
	if err != nil {
		return err
	}
	if sess == nil {
		return d.deps.Transport.SendMessage(ctx, st.ChatID, textNoSearch, nil)
	}
	offer, ok := sess.Current()
	if !ok {
		return apperr.Wrap(apperr.ErrInvariant, "like offer", fmt.Errorf("cursor %d past %d offers", sess.CurrentOfferIndex, len(sess.Offers)))
	}
	summary, err := d.describe(ctx, offer)
	if err != nil {
		return err
	}
	return d.transition(ctx, st, dialog.PersonaContactCollector, promptLikedOffer+summary)
}

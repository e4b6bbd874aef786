package middleware

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/data/repos/state"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/modules/funnel"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/dbctx"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// MembershipChecker reports whether a user belongs to a channel.
type MembershipChecker interface {
	IsSubscribed(ctx context.Context, channel string, userID int64) (bool, error)
}

// Subscription lets through only users subscribed to channelID. Everyone else gets
// the subscribe prompt and the update stops here without touching state or the CRM.
// An empty channelID disables the gate.
func Subscription(members MembershipChecker, transport funnel.Transport, failures FailureReplier, channelID, channelLink string, log *logger.Logger) Middleware {
	if channelID == "" {
		return nil
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			ok, err := members.IsSubscribed(ctx, channelID, ev.UserID)
			if err != nil {
				failures.ReplyFailure(ctx, ev, err)
				return err
			}
			if ok {
				return next(ctx, ev)
			}
			if ev.CallbackID != "" {
				if err := transport.AnswerCallbackQuery(ctx, ev.CallbackID); err != nil {
					log.Debug("Answer callback failed", "chat_id", ev.ChatID, "error", err)
				}
			}
			log.Info("User is not subscribed", "chat_id", ev.ChatID, "user_id", ev.UserID)
			return transport.SendMessage(ctx, ev.ChatID, funnel.SubscribeText(), funnel.SubscribeKeyboard(channelLink))
		}
	}
}

// LoadState attaches the chat's state to the event, creating it on first contact
// together with the CRM contact, lead and chat.
func LoadState(states state.UserStateRepo, crm funnel.CRM, mainPipeline int64, failures FailureReplier, log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			st, created, err := states.GetOrCreate(dbctx.Context{Ctx: ctx}, ev.ChatID)
			if err != nil {
				failures.ReplyFailure(ctx, ev, err)
				return err
			}
			if created {
				if err := crm.CreateContactLeadChat(ctx, ev.ChatID, mainPipeline, ev.Contact); err != nil {
					failures.ReplyFailure(ctx, ev, err)
					return err
				}
				log.Info("New chat", "chat_id", ev.ChatID, "state_id", st.ID)
			}
			ev.State = st
			ev.Created = created
			return next(ctx, ev)
		}
	}
}

// CountMessages bumps messages_seen for free text and lets the engagement tracker
// escalate the lead. Commands and buttons are not counted.
func CountMessages(states state.UserStateRepo, engagement *funnel.Engagement, failures FailureReplier, log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			if !ev.IsUserText() || ev.State == nil {
				return next(ctx, ev)
			}
			snap, err := states.Increment(dbctx.Context{Ctx: ctx}, ev.State.ID, dialog.CounterMessages)
			if err != nil {
				failures.ReplyFailure(ctx, ev, err)
				return err
			}
			ev.State.MessagesSeen = snap.Value
			ev.State.TransferredToHuman = snap.Transferred
			if err := engagement.Observe(ctx, ev.ChatID, snap); err != nil {
				log.Warn("Engagement escalation failed", "chat_id", ev.ChatID, "error", err)
			}
			return next(ctx, ev)
		}
	}
}

// MirrorToCRM copies the user's free text into the CRM chat. Mirroring is best effort.
func MirrorToCRM(crm funnel.CRM, log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, ev *funnel.Event) error {
			if ev.IsUserText() {
				if err := crm.ImportMessage(ctx, ev.ChatID, ev.Text, false); err != nil {
					log.Warn("CRM mirror failed", "chat_id", ev.ChatID, "error", err)
				}
			}
			return next(ctx, ev)
		}
	}
}

package funnel

import (
	"context"
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Bot commands.
const (
	CommandStart        = "start"
	CommandEstateSearch = "estate_search"
	CommandFinanceModel = "finance_model"
	CommandNews         = "news"
	CommandManager      = "manager"
)

// Commands is the command menu registered with Telegram.
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: CommandStart, Description: "Начать заново"},
		{Command: CommandEstateSearch, Description: "Подобрать помещение"},
		{Command: CommandFinanceModel, Description: "Рассчитать доходность"},
		{Command: CommandNews, Description: "Новости и аналитика рынка"},
		{Command: CommandManager, Description: "Связаться с менеджером"},
	}
}

var commandTargets = map[string]dialog.Persona{
	CommandEstateSearch: dialog.PersonaListingSearch,
	CommandFinanceModel: dialog.PersonaReturnsCalculator,
	CommandNews:         dialog.PersonaMarketExpert,
	CommandManager:      dialog.PersonaManagerHandoff,
}

// Controller is the innermost handler of the middleware chain. It maps commands,
// buttons and free text onto the router and the dispatcher and applies the reply
// policy when handling fails.
type Controller struct {
	deps       Deps
	router     *Router
	dispatcher *Dispatcher
	log        *logger.Logger
}

// Handle processes one event whose state was loaded by the middleware chain. The error
// is returned after the user has been answered so outer layers can log and count it.
func (c *Controller) Handle(ctx context.Context, ev *Event) error {
	err := c.handle(ctx, ev)
	if err != nil {
		c.ReplyFailure(ctx, ev, err)
	}
	return err
}

func (c *Controller) handle(ctx context.Context, ev *Event) error {
	if ev.State == nil {
		return apperr.Wrap(apperr.ErrInvariant, "handle", fmt.Errorf("event %d reached the controller without state", ev.UpdateID))
	}
	switch ev.Kind {
	case EventCommand:
		return c.command(ctx, ev)
	case EventCallback:
		if ev.CallbackID != "" {
			if err := c.deps.Transport.AnswerCallbackQuery(ctx, ev.CallbackID); err != nil {
				c.log.Debug("Answer callback failed", "chat_id", ev.ChatID, "error", err)
			}
		}
		return c.callback(ctx, ev)
	default:
		return c.message(ctx, ev)
	}
}

func (c *Controller) command(ctx context.Context, ev *Event) error {
	if ev.Text == CommandStart {
		return c.start(ctx, ev)
	}
	target, ok := commandTargets[ev.Text]
	if !ok {
		return apperr.Wrap(apperr.ErrInvalidArgument, "command", fmt.Errorf("unknown command %q", ev.Text))
	}
	if ev.State.TransferredToHuman {
		return c.managerOwns(ctx, ev)
	}
	return c.dispatcher.Transition(ctx, ev.State, target)
}

func (c *Controller) callback(ctx context.Context, ev *Event) error {
	if ev.CallbackData == CallbackCheckSubscribe {
		return c.start(ctx, ev)
	}
	if ev.State.TransferredToHuman {
		return c.managerOwns(ctx, ev)
	}
	if target, ok := callbackTargets[ev.CallbackData]; ok {
		return c.dispatcher.Transition(ctx, ev.State, target)
	}
	switch ev.CallbackData {
	case CallbackNextOffer:
		return c.dispatcher.Advance(ctx, ev.State, false)
	case CallbackNextEstate:
		return c.dispatcher.Advance(ctx, ev.State, true)
	case CallbackLikeOffer:
		return c.dispatcher.LikeOffer(ctx, ev.State)
	default:
		return apperr.Wrap(apperr.ErrInvalidArgument, "callback", fmt.Errorf("unknown callback data %q", ev.CallbackData))
	}
}

func (c *Controller) message(ctx context.Context, ev *Event) error {
	if !ev.IsUserText() {
		c.log.Info("Unsupported message", "chat_id", ev.ChatID, "update_id", ev.UpdateID)
		return c.deps.Transport.SendMessage(ctx, ev.ChatID, textServerError, nil)
	}
	return c.router.Handle(ctx, ev.State, ev.Text)
}

// managerOwns answers persona commands and buttons once a manager has the chat. Only
// /start brings the bot back.
func (c *Controller) managerOwns(ctx context.Context, ev *Event) error {
	c.log.Info("Chat is with a manager", "chat_id", ev.ChatID, "kind", ev.Kind)
	return c.deps.Transport.SendMessage(ctx, ev.ChatID, textManagerWaiting, nil)
}

// start cold-resets the chat: fresh state, a fresh CRM contact/lead/chat and the intro.
// A state created by this very update is already fresh.
func (c *Controller) start(ctx context.Context, ev *Event) error {
	if !ev.Created {
		fresh, err := c.deps.States.Reset(dbc(ctx), ev.ChatID)
		if err != nil {
			return err
		}
		ev.State = fresh
		if err := c.deps.CRM.DeleteContactLeadChat(ctx, ev.ChatID); err != nil {
			if apperr.Classify(err) != apperr.KindNotFound {
				return err
			}
			c.log.Info("No CRM records to delete", "chat_id", ev.ChatID)
		}
		if err := c.deps.CRM.CreateContactLeadChat(ctx, ev.ChatID, c.deps.Settings.Pipelines.Main, ev.Contact); err != nil {
			return err
		}
	}
	return c.dispatcher.Transition(ctx, ev.State, dialog.PersonaIntro)
}

// ReplyFailure tells the user that handling failed. Invariant violations get no reply; a
// missing record that reaches this point is a server error like any other.
func (c *Controller) ReplyFailure(ctx context.Context, ev *Event, err error) {
	var text string
	switch apperr.Classify(err) {
	case apperr.KindInvariant:
		return
	case apperr.KindBadInput:
		text = textBadInput
	default:
		text = textServerError
	}
	if sendErr := c.deps.Transport.SendMessage(ctx, ev.ChatID, text, nil); sendErr != nil {
		c.log.Warn("Failure reply not delivered", "chat_id", ev.ChatID, "error", sendErr)
	}
}

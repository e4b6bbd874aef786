package funnel

import (
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

type EventKind string

const (
	EventMessage  EventKind = "message"
	EventCommand  EventKind = "command"
	EventCallback EventKind = "callback"
)

// Event is one inbound update as the middleware chain and controller see it.
type Event struct {
	UpdateID int64
	Kind     EventKind
	ChatID   int64
	UserID   int64
	Contact  crm.Contact

	// Text is the message text; for commands it is the command name without the slash.
	Text string
	// NonText marks messages that carry no text (photos, documents, stickers).
	NonText bool

	CallbackID   string
	CallbackData string

	// Set by the load-state middleware.
	State   *dialog.UserState
	Created bool
}

// NewEvent converts a Bot API update; false for updates the bot ignores.
func NewEvent(u telegram.Update) (*Event, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		ev := &Event{UpdateID: u.UpdateID, Kind: EventMessage, ChatID: m.Chat.ID}
		if m.From != nil {
			ev.UserID = m.From.ID
			ev.Contact = contactOf(m.From)
		}
		text := strings.TrimSpace(m.Text)
		switch {
		case strings.HasPrefix(text, "/"):
			ev.Kind = EventCommand
			ev.Text = commandName(text)
		case text == "":
			ev.NonText = true
		default:
			ev.Text = text
		}
		return ev, true
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		ev := &Event{
			UpdateID:     u.UpdateID,
			Kind:         EventCallback,
			ChatID:       cb.From.ID,
			UserID:       cb.From.ID,
			Contact:      contactOf(&cb.From),
			CallbackID:   cb.ID,
			CallbackData: strings.TrimSpace(cb.Data),
		}
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
		return ev, true
	default:
		return nil, false
	}
}

// commandName turns "/start@wewall_bot payload" into "start".
func commandName(text string) string {
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func contactOf(u *telegram.User) crm.Contact {
	return crm.Contact{Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// IsUserText reports whether the event is free text typed by the user.
func (e *Event) IsUserText() bool {
	return e.Kind == EventMessage && !e.NonText && e.Text != ""
}

package funnel

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/openai"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
)

type LLM interface {
	Generate(ctx context.Context, req openai.Request) (string, error)
}

// ConversationLog is the per-chat turn log fed back to the model.
type ConversationLog interface {
	Append(ctx context.Context, chatID int64, role dialog.Role, text string) error
	History(ctx context.Context, chatID int64) ([]dialog.Turn, error)
	DeleteAll(ctx context.Context, chatID int64) error
}

type CRM interface {
	CreateContactLeadChat(ctx context.Context, chatID, pipelineID int64, contact crm.Contact) error
	DeleteContactLeadChat(ctx context.Context, chatID int64) error
	EditLead(ctx context.Context, chatID, pipelineID, statusID int64) error
	ImportMessage(ctx context.Context, chatID int64, text string, fromBot bool) error
}

type Listings interface {
	FindRent(ctx context.Context, params dialog.SearchParams) ([]dialog.Offer, error)
	FindSale(ctx context.Context, params dialog.SearchParams) ([]dialog.Offer, error)
}

type Calculator interface {
	Calculate(ctx context.Context, v finance.Variant, p finance.Params) (finance.Result, error)
	Spreadsheet(ctx context.Context, v finance.Variant, p finance.Params) ([]byte, error)
}

type Reports interface {
	PDF(ctx context.Context, kind finance.Variant, result finance.Result) ([]byte, error)
}

type Prompts interface {
	Get(ctx context.Context, key string) (string, error)
}

// Transport is the outbound half of the Telegram adapter.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) error
	SendPhotoGroup(ctx context.Context, chatID int64, urls []string) error
	SendDocument(ctx context.Context, chatID int64, doc telegram.File) error
	SendDocumentGroup(ctx context.Context, chatID int64, docs []telegram.File) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

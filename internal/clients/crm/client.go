package crm

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Contact is what the CRM learns about a Telegram user when its lead is created.
type Contact struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Client talks to the CRM gateway, which owns the contact, lead and chat records of each
// Telegram chat and hides the CRM's own protocol.
type Client struct {
	api *httpx.Client
	log *logger.Logger
}

func New(cfg config.CRMConfig, log *logger.Logger, httpClient *http.Client) *Client {
	api := httpx.New("crm", cfg.BaseURL, cfg.Timeout.Duration, httpClient)
	if token := strings.TrimSpace(cfg.Token); token != "" {
		api.Header.Set("Authorization", "Bearer "+token)
	}
	return &Client{api: api, log: log.With("client", "CRMClient")}
}

type createRequest struct {
	ChatID     int64 `json:"chat_id"`
	PipelineID int64 `json:"pipeline_id"`
	Contact
}

// CreateContactLeadChat creates the contact, a lead in pipelineID and the chat binding.
func (c *Client) CreateContactLeadChat(ctx context.Context, chatID, pipelineID int64, contact Contact) error {
	return c.api.DoJSON(ctx, http.MethodPost, "/contacts/lead-chat", createRequest{
		ChatID:     chatID,
		PipelineID: pipelineID,
		Contact:    contact,
	}, nil)
}

// DeleteContactLeadChat removes the triple. Missing records surface as ErrNotFound.
func (c *Client) DeleteContactLeadChat(ctx context.Context, chatID int64) error {
	return c.api.DoJSON(ctx, http.MethodDelete, "/contacts/lead-chat/"+strconv.FormatInt(chatID, 10), nil, nil)
}

type editLeadRequest struct {
	ChatID     int64 `json:"chat_id"`
	PipelineID int64 `json:"pipeline_id"`
	StatusID   int64 `json:"status_id"`
}

func (c *Client) EditLead(ctx context.Context, chatID, pipelineID, statusID int64) error {
	c.log.Info("crm edit lead", "chat_id", chatID, "pipeline_id", pipelineID, "status_id", statusID)
	return c.api.DoJSON(ctx, http.MethodPost, "/leads/edit", editLeadRequest{
		ChatID:     chatID,
		PipelineID: pipelineID,
		StatusID:   statusID,
	}, nil)
}

type importRequest struct {
	ChatID  int64  `json:"chat_id"`
	Text    string `json:"text"`
	FromBot bool   `json:"from_bot"`
}

// ImportMessage appends text to the lead's chat so managers see the dialog.
func (c *Client) ImportMessage(ctx context.Context, chatID int64, text string, fromBot bool) error {
	return c.api.DoJSON(ctx, http.MethodPost, "/chats/import", importRequest{
		ChatID:  chatID,
		Text:    text,
		FromBot: fromBot,
	}, nil)
}

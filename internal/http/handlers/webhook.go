package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/http/response"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

const headerSecretToken = "X-Telegram-Bot-Api-Secret-Token"

// UpdateDispatcher accepts an update for processing.
type UpdateDispatcher interface {
	Dispatch(ctx context.Context, u telegram.Update)
}

type WebhookHandler struct {
	updates UpdateDispatcher
	secret  string
	log     *logger.Logger
}

func NewWebhookHandler(log *logger.Logger, updates UpdateDispatcher, secret string) *WebhookHandler {
	return &WebhookHandler{updates: updates, secret: secret, log: log.With("handler", "TelegramWebhook")}
}

// Receive acknowledges a Bot API update and hands it to the worker pool.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(headerSecretToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			response.RespondError(c, http.StatusUnauthorized, "bad_secret", errors.New("invalid webhook secret"))
			return
		}
	}
	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		h.log.Warn("Undecodable webhook body", "error", err)
		response.RespondError(c, http.StatusBadRequest, "bad_update", err)
		return
	}
	h.updates.Dispatch(c.Request.Context(), u)
	response.RespondOK(c)
}

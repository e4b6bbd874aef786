package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

const maxMediaGroup = 10

type Client struct {
	api   *httpx.Client
	token string
	log   *logger.Logger
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

func New(cfg config.TelegramConfig, log *logger.Logger, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: missing bot token")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := httpx.New("telegram", strings.TrimRight(base, "/")+"/bot"+cfg.Token, timeout, httpClient)
	return &Client{api: api, token: cfg.Token, log: log.With("client", "TelegramClient")}, nil
}

// scrub keeps the bot token out of errors; request urls embed it.
func (c *Client) scrub(err error) error {
	if err == nil || c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return &scrubbedError{msg: strings.ReplaceAll(err.Error(), c.token, "<token>"), err: err}
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	raw, err := c.api.Do(ctx, http.MethodPost, "/"+method, payload)
	if err != nil {
		return c.scrub(err)
	}
	return decodeEnvelope(method, raw, out)
}

func decodeEnvelope(method string, raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	if !env.OK {
		return fmt.Errorf("telegram %s: %w", method, &httpx.StatusError{Code: env.ErrorCode, Body: env.Description})
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}
	// The long poll outlives the per-call timeout.
	api := *c.api
	api.Timeout += timeout
	raw, err := api.Do(ctx, http.MethodPost, "/getUpdates", payload)
	if err != nil {
		return nil, c.scrub(err)
	}
	var updates []Update
	if err := decodeEnvelope("getUpdates", raw, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if kb != nil {
		payload["reply_markup"] = kb
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendPhotoGroup sends up to ten photos by URL as one album.
func (c *Client) SendPhotoGroup(ctx context.Context, chatID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if len(urls) > maxMediaGroup {
		urls = urls[:maxMediaGroup]
	}
	if len(urls) == 1 {
		return c.call(ctx, "sendPhoto", map[string]any{"chat_id": chatID, "photo": urls[0]}, nil)
	}
	media := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		media = append(media, map[string]string{"type": "photo", "media": u})
	}
	return c.call(ctx, "sendMediaGroup", map[string]any{"chat_id": chatID, "media": media}, nil)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, doc File) error {
	return c.upload(ctx, "sendDocument", chatID, []File{doc}, nil)
}

// SendDocumentGroup sends two to ten documents as one album; a single file goes out as a plain document.
func (c *Client) SendDocumentGroup(ctx context.Context, chatID int64, docs []File) error {
	switch {
	case len(docs) == 0:
		return nil
	case len(docs) == 1:
		return c.SendDocument(ctx, chatID, docs[0])
	case len(docs) > maxMediaGroup:
		docs = docs[:maxMediaGroup]
	}
	return c.upload(ctx, "sendMediaGroup", chatID, docs, func(mw *multipart.Writer) error {
		media := make([]map[string]string, 0, len(docs))
		for i := range docs {
			media = append(media, map[string]string{"type": "document", "media": "attach://" + attachName(i)})
		}
		b, err := json.Marshal(media)
		if err != nil {
			return err
		}
		return mw.WriteField("media", string(b))
	})
}

func attachName(i int) string { return "file" + strconv.Itoa(i) }

func (c *Client) upload(ctx context.Context, method string, chatID int64, files []File, extra func(*multipart.Writer) error) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if extra != nil {
		if err := extra(mw); err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
	}
	for i, f := range files {
		field := "document"
		if method == "sendMediaGroup" {
			field = attachName(i)
		}
		part, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.BaseURL+"/"+method, &buf)
	if err != nil {
		return c.scrub(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := c.api.Send(req, method)
	if err != nil {
		return c.scrub(err)
	}
	return decodeEnvelope(method, raw, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}

// IsSubscribed checks channel membership of userID. An empty channel disables the check.
func (c *Client) IsSubscribed(ctx context.Context, channel string, userID int64) (bool, error) {
	if strings.TrimSpace(channel) == "" {
		return true, nil
	}
	var member ChatMember
	err := c.call(ctx, "getChatMember", map[string]any{"chat_id": channel, "user_id": userID}, &member)
	if err != nil {
		var se *httpx.StatusError
		// Telegram answers 400 "user not found" for users that never joined.
		if errors.As(err, &se) && se.Code == http.StatusBadRequest {
			return false, nil
		}
		return false, err
	}
	return member.Subscribed(), nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, nil)
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}

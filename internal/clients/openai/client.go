package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/observability"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// Request is one chat completion: a system prompt over a conversation log.
type Request struct {
	System      string
	History     []dialog.Turn
	Temperature float64
	Tier        dialog.Tier
}

type Client struct {
	api          openai.Client
	defaultModel string
	highModel    string
	timeout      time.Duration
	log          *logger.Logger
}

func New(cfg config.LLMConfig, log *logger.Logger, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: missing api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Client{
		api:          openai.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		highModel:    cfg.HighQualityModel,
		timeout:      cfg.Timeout.Duration,
		log:          log.With("client", "OpenAIClient"),
	}, nil
}

func (c *Client) model(tier dialog.Tier) string {
	if tier == dialog.TierHigh && c.highModel != "" {
		return c.highModel
	}
	return c.defaultModel
}

func messages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, t := range req.History {
		switch t.Role {
		case dialog.RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Text))
		case dialog.RoleSystem:
			out = append(out, openai.SystemMessage(t.Text))
		default:
			out = append(out, openai.UserMessage(t.Text))
		}
	}
	return out
}

// Generate returns the text of the first choice. Timeouts, rate limits and 5xx map to ErrTransient.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	model := c.model(req.Tier)
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages(req),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		err = classify(err)
		observability.Current().ObserveLLMRequest(model, apperr.Classify(err).String(), time.Since(start), 0, 0)
		return "", err
	}
	observability.Current().ObserveLLMRequest(model, "ok", time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", apperr.Wrap(apperr.ErrTransient, "openai chat completion", errors.New("no choices"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.log.Debug("llm completion", "model", model, "tier", req.Tier, "turns", len(req.History), "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if httpx.IsRetryableHTTPStatus(apiErr.StatusCode) {
			return apperr.Wrap(apperr.ErrTransient, "openai chat completion", err)
		}
		return fmt.Errorf("openai chat completion: %w", err)
	}
	return httpx.Classify("openai chat completion", err)
}

package report

import (
	"context"
	"net/http"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/clients/finance"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
)

// Client renders calculator results as PDF reports.
type Client struct {
	api *httpx.Client
}

func New(cfg config.ServiceEndpoint, httpClient *http.Client) *Client {
	return &Client{api: httpx.New("report", cfg.BaseURL, cfg.Timeout.Duration, httpClient)}
}

// PDF renders result for the given calculator variant.
func (c *Client) PDF(ctx context.Context, kind finance.Variant, result finance.Result) ([]byte, error) {
	return c.api.Do(ctx, http.MethodPost, "/pdf/"+string(kind), result)
}

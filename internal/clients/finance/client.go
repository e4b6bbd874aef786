package finance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
)

// Variant is one of the returns-calculator entry points.
type Variant string

const (
	FinishedOffice Variant = "finished_office"
	FinishedRetail Variant = "finished_retail"
	BuildingOffice Variant = "building_office"
	BuildingRetail Variant = "building_retail"
)

func (v Variant) Valid() bool {
	switch v {
	case FinishedOffice, FinishedRetail, BuildingOffice, BuildingRetail:
		return true
	default:
		return false
	}
}

// Params and Result are opaque to the bot; the calculator owns their schema.
type (
	Params map[string]any
	Result map[string]any
)

// Client calls the returns calculator. Each variant has a numeric form and an XLSX form.
type Client struct {
	api *httpx.Client
}

func New(cfg config.ServiceEndpoint, httpClient *http.Client) *Client {
	return &Client{api: httpx.New("calculator", cfg.BaseURL, cfg.Timeout.Duration, httpClient)}
}

func (c *Client) Calculate(ctx context.Context, v Variant, p Params) (Result, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("calculator: unknown variant %q", v)
	}
	var out Result
	if err := c.api.DoJSON(ctx, http.MethodPost, "/calc/"+string(v), p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Spreadsheet(ctx context.Context, v Variant, p Params) ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("calculator: unknown variant %q", v)
	}
	return c.api.Do(ctx, http.MethodPost, "/calc/"+string(v)+"/xlsx", p)
}

package listing

import (
	"context"
	"net/http"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/httpx"
)

// Client queries the listing service for offers matching frozen search parameters.
type Client struct {
	api *httpx.Client
}

func New(cfg config.ServiceEndpoint, httpClient *http.Client) *Client {
	return &Client{api: httpx.New("listing", cfg.BaseURL, cfg.Timeout.Duration, httpClient)}
}

type findResponse struct {
	Offers []dialog.Offer `json:"offers"`
}

func (c *Client) FindRent(ctx context.Context, params dialog.SearchParams) ([]dialog.Offer, error) {
	return c.find(ctx, "/offers/rent", dialog.DealRent, params)
}

func (c *Client) FindSale(ctx context.Context, params dialog.SearchParams) ([]dialog.Offer, error) {
	return c.find(ctx, "/offers/sale", dialog.DealSale, params)
}

func (c *Client) find(ctx context.Context, path, deal string, params dialog.SearchParams) ([]dialog.Offer, error) {
	var resp findResponse
	if err := c.api.DoJSON(ctx, http.MethodPost, path, params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Offers {
		resp.Offers[i].Deal = deal
	}
	return resp.Offers, nil
}

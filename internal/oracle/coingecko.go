package oracle

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/traderadar/backend/internal/upstream"
)

type coinGeckoPrice struct {
	USD upstream.Number `json:"usd"`
}

// CoinGecko fetches prices from the simple/price endpoint.
type CoinGecko struct {
	client *upstream.Client
}

func NewCoinGecko(baseURL, apiKey string, timeout time.Duration) *CoinGecko {
	return &CoinGecko{
		client: upstream.New(baseURL, timeout).WithHeader("x-cg-demo-api-key", apiKey),
	}
}

func (c *CoinGecko) FetchUSD(ctx context.Context, ids []string) (map[string]float64, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")

	var payload map[string]coinGeckoPrice
	if err := c.client.GetJSON(ctx, "/simple/price", query, &payload); err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(payload))
	for id, price := range payload {
		out[id] = price.USD.Float64()
	}
	return out, nil
}

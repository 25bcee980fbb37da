package bot

import (
	"context"
	"net/url"
	"time"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/store"
	"github.com/traderadar/backend/internal/upstream"
)

// APIClient reads market data from the TradeRadar HTTP API.
type APIClient struct {
	http *upstream.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{http: upstream.New(baseURL, timeout)}
}

type pairResponse struct {
	Pair analytics.PairMetrics `json:"pair"`
}

type pairsResponse struct {
	Pairs []analytics.PairMetrics `json:"pairs"`
}

type poolsResponse struct {
	Pools []store.Pool `json:"pools"`
}

// Pair returns one Merkle market. An unknown symbol is a NotFound error.
func (c *APIClient) Pair(ctx context.Context, symbol string) (analytics.PairMetrics, error) {
	var response pairResponse
	if err := c.http.GetJSON(ctx, "/api/merkle/pairs", url.Values{"symbol": {symbol}}, &response); err != nil {
		return analytics.PairMetrics{}, err
	}
	return response.Pair, nil
}

func (c *APIClient) Pairs(ctx context.Context) ([]analytics.PairMetrics, error) {
	var response pairsResponse
	if err := c.http.GetJSON(ctx, "/api/merkle/pairs", nil, &response); err != nil {
		return nil, err
	}
	return response.Pairs, nil
}

func (c *APIClient) Pools(ctx context.Context) ([]analytics.Pool, error) {
	var response poolsResponse
	if err := c.http.GetJSON(ctx, "/api/hyperion/pools", nil, &response); err != nil {
		return nil, err
	}
	return analytics.PoolsFromRecords(response.Pools), nil
}

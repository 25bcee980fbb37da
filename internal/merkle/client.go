// Package merkle reads perpetuals market data from the Merkle Trade REST API.
package merkle

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
	"github.com/traderadar/backend/internal/upstream"
)

const (
	orderbookSideBid = "bid"
	orderbookSideAsk = "ask"
)

type Pair struct {
	Symbol         string          `json:"symbol"`
	BaseAsset      string          `json:"baseAsset"`
	QuoteAsset     string          `json:"quoteAsset"`
	MarkPrice      upstream.Number `json:"markPrice"`
	IndexPrice     upstream.Number `json:"indexPrice"`
	Volume24h      upstream.Number `json:"volume24h"`
	PriceChange24h upstream.Number `json:"priceChange24h"`
	FundingRate    upstream.Number `json:"fundingRate"`
}

func (p Pair) Metrics() analytics.PairMetrics {
	return analytics.NewPairMetrics(analytics.PairInput{
		Symbol:         p.Symbol,
		BaseAsset:      p.BaseAsset,
		QuoteAsset:     p.QuoteAsset,
		MarkPrice:      p.MarkPrice.Float64(),
		IndexPrice:     p.IndexPrice.Float64(),
		Volume24h:      p.Volume24h.Float64(),
		PriceChange24h: p.PriceChange24h.Float64(),
		FundingRate:    p.FundingRate.Float64(),
	})
}

type Position struct {
	User             string          `json:"user"`
	Pair             string          `json:"pair"`
	Size             upstream.Number `json:"size"`
	Collateral       upstream.Number `json:"collateral"`
	EntryPrice       upstream.Number `json:"entryPrice"`
	LiquidationPrice upstream.Number `json:"liquidationPrice"`
	UnrealizedPnl    upstream.Number `json:"unrealizedPnl"`
	Leverage         upstream.Number `json:"leverage"`
	IsLong           bool            `json:"isLong"`
}

func (p Position) Metrics() analytics.PositionMetrics {
	return analytics.NewPositionMetrics(analytics.PositionInput{
		User:             p.User,
		Pair:             p.Pair,
		Size:             p.Size.Float64(),
		Collateral:       p.Collateral.Float64(),
		EntryPrice:       p.EntryPrice.Float64(),
		LiquidationPrice: p.LiquidationPrice.Float64(),
		UnrealizedPnl:    p.UnrealizedPnl.Float64(),
		Leverage:         p.Leverage.Float64(),
		IsLong:           p.IsLong,
	})
}

type OrderbookLevel struct {
	Side     string  `json:"side"`
	Level    int     `json:"level"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

type Orderbook struct {
	Symbol  string           `json:"symbol"`
	BestBid float64          `json:"bestBid"`
	BestAsk float64          `json:"bestAsk"`
	Spread  float64          `json:"spread"`
	Bids    []OrderbookLevel `json:"bids"`
	Asks    []OrderbookLevel `json:"asks"`
}

type rawOrderbook struct {
	Symbol string     `json:"symbol"`
	Bids   [][]string `json:"bids"`
	Asks   [][]string `json:"asks"`
}

type Client struct {
	http *upstream.Client
}

func New(cfg config.MerkleConfig) *Client {
	return &Client{http: upstream.New(cfg.BaseURL, cfg.Timeout)}
}

func (c *Client) Pairs(ctx context.Context) ([]Pair, error) {
	var pairs []Pair
	if err := c.http.GetJSON(ctx, "/pairs", nil, &pairs); err != nil {
		return nil, err
	}
	if pairs == nil {
		pairs = []Pair{}
	}
	return pairs, nil
}

// Market returns one pair; an unknown symbol is a NotFound error.
func (c *Client) Market(ctx context.Context, symbol string) (Pair, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Pair{}, apperr.Errorf(apperr.KindInvalid, "merkle market", "symbol is required")
	}
	var pair Pair
	if err := c.http.GetJSON(ctx, "/markets/"+url.PathEscape(symbol), nil, &pair); err != nil {
		return Pair{}, err
	}
	if pair.Symbol == "" {
		return Pair{}, apperr.Errorf(apperr.KindNotFound, "merkle market", "no market for %s", symbol)
	}
	return pair, nil
}

func (c *Client) Positions(ctx context.Context, user string) ([]Position, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, apperr.Errorf(apperr.KindInvalid, "merkle positions", "user address is required")
	}
	var positions []Position
	if err := c.http.GetJSON(ctx, "/users/"+url.PathEscape(user)+"/positions", nil, &positions); err != nil {
		if apperr.IsNotFound(err) {
			return []Position{}, nil
		}
		return nil, err
	}
	if positions == nil {
		positions = []Position{}
	}
	return positions, nil
}

func (c *Client) Orderbook(ctx context.Context, symbol string) (Orderbook, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Orderbook{}, apperr.Errorf(apperr.KindInvalid, "merkle orderbook", "symbol is required")
	}
	var raw rawOrderbook
	if err := c.http.GetJSON(ctx, "/orderbook/"+url.PathEscape(symbol), nil, &raw); err != nil {
		return Orderbook{}, err
	}

	book := Orderbook{
		Symbol: symbol,
		Bids:   parseLevels(orderbookSideBid, raw.Bids, true),
		Asks:   parseLevels(orderbookSideAsk, raw.Asks, false),
	}
	if raw.Symbol != "" {
		book.Symbol = raw.Symbol
	}
	if len(book.Bids) > 0 {
		book.BestBid = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		book.BestAsk = book.Asks[0].Price
	}
	if book.BestBid > 0 && book.BestAsk > 0 {
		book.Spread = book.BestAsk - book.BestBid
	}
	return book, nil
}

// parseLevels reads [price, quantity] string pairs, dropping malformed and
// empty levels, and ranks them best first.
func parseLevels(side string, pairs [][]string, desc bool) []OrderbookLevel {
	out := make([]OrderbookLevel, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(pair[0]), 64)
		if err != nil || price <= 0 {
			continue
		}
		quantity, err := strconv.ParseFloat(strings.TrimSpace(pair[1]), 64)
		if err != nil || quantity <= 0 {
			continue
		}
		out = append(out, OrderbookLevel{Side: side, Price: price, Quantity: quantity})
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	for i := range out {
		out[i].Level = i
	}
	return out
}

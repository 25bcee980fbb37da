// Package oracle resolves USD spot prices for the tracked symbol set. Quotes
// are cached per symbol for a TTL measured on an injected Clock, so expiry can
// be driven from tests without sleeping.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
)

type Source string

const (
	SourceLive        Source = "live"
	SourceCache       Source = "cache"
	SourceStale       Source = "stale"
	SourceFallback    Source = "fallback"
	SourceUnavailable Source = "unavailable"
)

type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Source    Source    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Fetcher performs one upstream request for a batch of provider ids and
// returns USD prices keyed by id. Ids missing from the result had no price.
type Fetcher interface {
	FetchUSD(ctx context.Context, ids []string) (map[string]float64, error)
}

// coinIDs maps tracked symbols to provider ids. USD is priced as USDC.
var coinIDs = map[string]string{
	"APT":  "aptos",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"USDC": "usd-coin",
	"USDT": "tether",
	"USD":  "usd-coin",
}

var defaultFallbacks = map[string]float64{
	"USDC": 1.0,
	"USDT": 1.0,
	"USD":  1.0,
}

var quotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "traderadar",
	Subsystem: "oracle",
	Name:      "quotes_total",
	Help:      "Price quotes served, by source.",
}, []string{"source"})

type entry struct {
	price     float64
	fetchedAt time.Time
}

type Oracle struct {
	fetcher   Fetcher
	clock     Clock
	ttl       time.Duration
	cache     *lru.Cache[string, entry]
	fallbacks map[string]float64
	logger    *slog.Logger
}

// New builds an oracle. A nil fetcher uses CoinGecko at cfg.BaseURL and a
// nil clock uses the wall clock.
func New(cfg config.OracleConfig, fetcher Fetcher, clock Clock, logger *slog.Logger) (*Oracle, error) {
	if fetcher == nil {
		fetcher = NewCoinGecko(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create price cache: %w", err)
	}

	fallbacks := make(map[string]float64, len(defaultFallbacks)+len(cfg.FallbackPrices))
	for symbol, price := range defaultFallbacks {
		fallbacks[symbol] = price
	}
	for symbol, price := range cfg.FallbackPrices {
		fallbacks[normalizeSymbol(symbol)] = price
	}

	return &Oracle{
		fetcher:   fetcher,
		clock:     clock,
		ttl:       ttl,
		cache:     cache,
		fallbacks: fallbacks,
		logger:    logger.With("component", "oracle"),
	}, nil
}

func normalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Supported reports whether symbol has a provider id.
func Supported(symbol string) bool {
	_, ok := coinIDs[normalizeSymbol(symbol)]
	return ok
}

// Price returns the USD price of symbol. A fresh cached quote is served
// without a request. When the request fails the last cached price, then the
// fallback table, is used; only when neither exists is an upstream error
// returned alongside a zero quote.
func (o *Oracle) Price(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	id, ok := coinIDs[symbol]
	if !ok {
		return Quote{Symbol: symbol, Source: SourceUnavailable}, apperr.Errorf(apperr.KindInvalid, "oracle price", "unsupported symbol %q", symbol)
	}

	if quote, ok := o.fresh(symbol); ok {
		return o.served(quote), nil
	}

	prices, err := o.fetcher.FetchUSD(ctx, []string{id})
	if err == nil {
		if price, ok := prices[id]; ok {
			return o.served(o.store(symbol, price)), nil
		}
		err = apperr.Errorf(apperr.KindUpstream, "oracle price", "no price returned for %s", id)
	}
	return o.degrade(symbol, err)
}

// Prices resolves several symbols with at most one upstream request.
// Unsupported symbols are skipped. The error is non-nil only when at least
// one symbol ended up unavailable.
func (o *Oracle) Prices(ctx context.Context, symbols []string) (map[string]Quote, error) {
	quotes := make(map[string]Quote, len(symbols))
	pending := make(map[string][]string)
	ids := make([]string, 0, len(symbols))

	for _, raw := range symbols {
		symbol := normalizeSymbol(raw)
		id, ok := coinIDs[symbol]
		if !ok {
			continue
		}
		if _, done := quotes[symbol]; done {
			continue
		}
		if quote, ok := o.fresh(symbol); ok {
			quotes[symbol] = o.served(quote)
			continue
		}
		if _, seen := pending[id]; !seen {
			ids = append(ids, id)
		}
		pending[id] = append(pending[id], symbol)
		quotes[symbol] = Quote{Symbol: symbol, Source: SourceUnavailable}
	}
	if len(ids) == 0 {
		return quotes, nil
	}

	prices, fetchErr := o.fetcher.FetchUSD(ctx, ids)
	var firstErr error
	for _, id := range ids {
		for _, symbol := range pending[id] {
			if fetchErr == nil {
				if price, ok := prices[id]; ok {
					quotes[symbol] = o.served(o.store(symbol, price))
					continue
				}
			}
			cause := fetchErr
			if cause == nil {
				cause = apperr.Errorf(apperr.KindUpstream, "oracle prices", "no price returned for %s", id)
			}
			quote, err := o.degrade(symbol, cause)
			quotes[symbol] = quote
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return quotes, firstErr
}

// PairPrices prices both sides of a "BASE/QUOTE" pair.
func (o *Oracle) PairPrices(ctx context.Context, pair string) ([2]float64, error) {
	base, quote, ok := strings.Cut(pair, "/")
	base, quote = normalizeSymbol(base), normalizeSymbol(quote)
	if !ok || base == "" || quote == "" {
		return [2]float64{}, apperr.Errorf(apperr.KindInvalid, "oracle pair prices", "invalid pair %q", pair)
	}
	quotes, err := o.Prices(ctx, []string{base, quote})
	return [2]float64{quotes[base].Price, quotes[quote].Price}, err
}

func (o *Oracle) fresh(symbol string) (Quote, bool) {
	cached, ok := o.cache.Get(symbol)
	if !ok || o.clock.Now().Sub(cached.fetchedAt) >= o.ttl {
		return Quote{}, false
	}
	return Quote{Symbol: symbol, Price: cached.price, Source: SourceCache, FetchedAt: cached.fetchedAt}, true
}

func (o *Oracle) store(symbol string, price float64) Quote {
	now := o.clock.Now()
	o.cache.Add(symbol, entry{price: price, fetchedAt: now})
	return Quote{Symbol: symbol, Price: price, Source: SourceLive, FetchedAt: now}
}

func (o *Oracle) degrade(symbol string, cause error) (Quote, error) {
	if cached, ok := o.cache.Get(symbol); ok {
		o.logger.Warn("price fetch failed, serving stale quote",
			"symbol", symbol,
			"age", o.clock.Now().Sub(cached.fetchedAt).String(),
			"err", cause,
		)
		return o.served(Quote{Symbol: symbol, Price: cached.price, Source: SourceStale, FetchedAt: cached.fetchedAt}), nil
	}
	if price, ok := o.fallbacks[symbol]; ok {
		o.logger.Warn("price fetch failed, serving fallback", "symbol", symbol, "err", cause)
		return o.served(Quote{Symbol: symbol, Price: price, Source: SourceFallback}), nil
	}
	o.logger.Error("price unavailable", "symbol", symbol, "err", cause)
	quotesTotal.WithLabelValues(string(SourceUnavailable)).Inc()
	return Quote{Symbol: symbol, Source: SourceUnavailable}, apperr.E(apperr.KindUpstream, "oracle price "+symbol, cause)
}

func (o *Oracle) served(quote Quote) Quote {
	quotesTotal.WithLabelValues(string(quote.Source)).Inc()
	return quote
}

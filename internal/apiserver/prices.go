package apiserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/oracle"
	"github.com/traderadar/backend/internal/store"
)

// SourceTracker marks a quote served from the last tick the price tracker
// stored, used when the oracle has nothing better.
const SourceTracker oracle.Source = "tracker"

var defaultPriceSymbols = []string{"APT", "BTC", "ETH", "USDC", "USDT"}

type pricesResponse struct {
	Prices    map[string]oracle.Quote `json:"prices"`
	Count     int                     `json:"count"`
	Timestamp int64                   `json:"timestamp"`
}

type priceHistoryResponse struct {
	Symbol string            `json:"symbol"`
	Hours  int               `json:"hours"`
	Ticks  []store.PriceTick `json:"ticks"`
	Count  int               `json:"count"`
}

type indicatorsResponse struct {
	Symbol     string                 `json:"symbol"`
	Hours      int                    `json:"hours"`
	Indicators analytics.IndicatorSet `json:"indicators"`
}

func normalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func parseSymbols(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultPriceSymbols...)
	}
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		symbol := normalizeSymbol(part)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func (s *Service) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	symbols := parseSymbols(queryParam(r, "symbols"))
	for _, symbol := range symbols {
		if !oracle.Supported(symbol) {
			s.respondError(w, http.StatusBadRequest, "unsupported symbol "+symbol)
			return
		}
	}

	quotes, err := s.oracle.Prices(r.Context(), symbols)
	if err != nil {
		s.logger.Warn("oracle prices incomplete", "symbols", strings.Join(symbols, ","), "err", err)
	}
	for symbol, quote := range quotes {
		if quote.Source != oracle.SourceUnavailable {
			continue
		}
		tick, err := s.store.LatestPriceTick(r.Context(), symbol)
		if err != nil {
			if !apperr.IsNotFound(err) {
				s.logger.Warn("latest price tick failed", "symbol", symbol, "err", err)
			}
			continue
		}
		quotes[symbol] = oracle.Quote{
			Symbol:    symbol,
			Price:     tick.Price.InexactFloat64(),
			Source:    SourceTracker,
			FetchedAt: time.Unix(tick.PublishTime, 0).UTC(),
		}
	}

	s.respondJSON(w, http.StatusOK, pricesResponse{Prices: quotes, Count: len(quotes), Timestamp: s.now().UnixMilli()})
}

func (s *Service) priceTicks(r *http.Request) (string, int, []store.PriceTick, error) {
	symbol := normalizeSymbol(queryParam(r, "symbol"))
	if symbol == "" {
		return "", 0, nil, apperr.Errorf(apperr.KindInvalid, "price ticks", "symbol is required")
	}
	hours, err := parseOptionalInt(r, "hours", 24)
	if err != nil {
		return "", 0, nil, apperr.E(apperr.KindInvalid, "price ticks", err)
	}
	limit, err := parseOptionalInt(r, "limit", 500)
	if err != nil {
		return "", 0, nil, apperr.E(apperr.KindInvalid, "price ticks", err)
	}
	since := s.now().Add(-time.Duration(hours) * time.Hour).Unix()
	ticks, err := s.store.ListPriceTicks(r.Context(), symbol, since, limit)
	if err != nil {
		return "", 0, nil, err
	}
	return symbol, hours, ticks, nil
}

func (s *Service) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	symbol, hours, ticks, err := s.priceTicks(r)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch price history")
		return
	}
	s.respondJSON(w, http.StatusOK, priceHistoryResponse{Symbol: symbol, Hours: hours, Ticks: ticks, Count: len(ticks)})
}

func (s *Service) handlePriceIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	symbol, hours, ticks, err := s.priceTicks(r)
	if err != nil {
		s.respondFailure(w, err, "Failed to calculate indicators")
		return
	}
	prices := make([]float64, 0, len(ticks))
	for _, tick := range ticks {
		prices = append(prices, tick.Price.InexactFloat64())
	}
	s.respondJSON(w, http.StatusOK, indicatorsResponse{Symbol: symbol, Hours: hours, Indicators: analytics.Indicators(prices)})
}

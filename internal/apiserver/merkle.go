package apiserver

import (
	"net/http"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/merkle"
)

type pairResponse struct {
	Pair analytics.PairMetrics `json:"pair"`
}

type pairsResponse struct {
	Pairs   []analytics.PairMetrics `json:"pairs"`
	Count   int                     `json:"count"`
	Metrics analytics.PairsSummary  `json:"metrics"`
}

type positionsResponse struct {
	Positions []analytics.PositionMetrics `json:"positions"`
	Count     int                         `json:"count"`
	Metrics   analytics.PositionTotals    `json:"metrics"`
	Summary   analytics.PositionSummary   `json:"summary"`
}

type orderbookResponse struct {
	Orderbook merkle.Orderbook `json:"orderbook"`
}

func (s *Service) handleMerklePairs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}

	if symbol := queryParam(r, "symbol"); symbol != "" {
		pair, err := s.merkle.Market(r.Context(), symbol)
		if apperr.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "Market data not found for symbol")
			return
		}
		if err != nil {
			s.respondUpstreamFailure(w, err, "Failed to fetch Merkle pairs")
			return
		}
		s.respondJSON(w, http.StatusOK, pairResponse{Pair: pair.Metrics()})
		return
	}

	pairs, err := s.merkle.Pairs(r.Context())
	if err != nil {
		s.respondUpstreamFailure(w, err, "Failed to fetch Merkle pairs")
		return
	}
	metrics := make([]analytics.PairMetrics, 0, len(pairs))
	for _, pair := range pairs {
		metrics = append(metrics, pair.Metrics())
	}
	s.respondJSON(w, http.StatusOK, pairsResponse{
		Pairs:   metrics,
		Count:   len(metrics),
		Metrics: analytics.SummarizePairs(metrics),
	})
}

func (s *Service) handleMerklePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	user := queryParam(r, "user")
	if user == "" {
		s.respondError(w, http.StatusBadRequest, "User address is required")
		return
	}

	positions, err := s.merkle.Positions(r.Context(), user)
	if err != nil {
		s.respondUpstreamFailure(w, err, "Failed to fetch user positions")
		return
	}
	metrics := make([]analytics.PositionMetrics, 0, len(positions))
	for _, position := range positions {
		metrics = append(metrics, position.Metrics())
	}
	totals, summary := analytics.SummarizePositions(metrics)
	s.respondJSON(w, http.StatusOK, positionsResponse{
		Positions: metrics,
		Count:     len(metrics),
		Metrics:   totals,
		Summary:   summary,
	})
}

func (s *Service) handleMerkleOrderbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	symbol := queryParam(r, "symbol")
	if symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	book, err := s.merkle.Orderbook(r.Context(), symbol)
	if apperr.IsNotFound(err) {
		s.respondError(w, http.StatusNotFound, "Orderbook not found for symbol")
		return
	}
	if err != nil {
		s.respondUpstreamFailure(w, err, "Failed to fetch Merkle orderbook")
		return
	}
	s.respondJSON(w, http.StatusOK, orderbookResponse{Orderbook: book})
}

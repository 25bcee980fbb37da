package merkle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pairs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"symbol":"BTC_USD","baseAsset":"BTC","quoteAsset":"USD","markPrice":"61000.5","volume24h":"1200000","priceChange24h":"-2.5","fundingRate":"-0.0001"},
			{"symbol":"ETH_USD","baseAsset":"ETH","quoteAsset":"USD","markPrice":3000,"volume24h":null,"fundingRate":"0.0002"}
		]`))
	})
	mux.HandleFunc("/markets/BTC_USD", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTC_USD","markPrice":"61000"}`))
	})
	mux.HandleFunc("/markets/DOGE_USD", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/users/0xabc/positions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"user":"0xabc","pair":"BTC_USD","size":"1000","collateral":"100","entryPrice":"100","liquidationPrice":"97","unrealizedPnl":"25","leverage":10,"isLong":true}]`))
	})
	mux.HandleFunc("/orderbook/BTC_USD", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTC_USD","bids":[["99","1"],["100","2"],["bad","1"]],"asks":[["102","1"],["101","0"],["103","4"]]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return New(config.MerkleConfig{BaseURL: server.URL, Timeout: time.Second})
}

func TestPairsParsesStringNumbers(t *testing.T) {
	client := newTestClient(t)
	pairs, err := client.Pairs(context.Background())
	if err != nil {
		t.Fatalf("Pairs() error = %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d", len(pairs))
	}
	btc := pairs[0].Metrics()
	if btc.MarkPrice != 61000.5 || btc.Volume24h != 1_200_000 || btc.PriceChange24h != -2.5 || !btc.IsLongFavorable {
		t.Fatalf("btc = %+v", btc)
	}
	if pairs[1].MarkPrice.Float64() != 3000 || pairs[1].Volume24h.Float64() != 0 {
		t.Fatalf("eth = %+v", pairs[1])
	}
}

func TestMarketNotFound(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Market(context.Background(), "BTC_USD"); err != nil {
		t.Fatalf("Market(BTC_USD) error = %v", err)
	}
	if _, err := client.Market(context.Background(), "DOGE_USD"); !apperr.IsNotFound(err) {
		t.Fatalf("Market(DOGE_USD) error = %v, want not found", err)
	}
	if _, err := client.Market(context.Background(), " "); !apperr.IsInvalid(err) {
		t.Fatalf("Market(blank) error = %v, want invalid", err)
	}
}

func TestPositions(t *testing.T) {
	client := newTestClient(t)
	positions, err := client.Positions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Positions() error = %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d", len(positions))
	}
	metrics := positions[0].Metrics()
	if metrics.Leverage != 10 || metrics.PnlPercentage != 25 || metrics.Direction != "LONG" {
		t.Fatalf("metrics = %+v", metrics)
	}

	empty, err := client.Positions(context.Background(), "0xnone")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown user positions = %v, err = %v", empty, err)
	}
}

func TestOrderbookRanksLevels(t *testing.T) {
	client := newTestClient(t)
	book, err := client.Orderbook(context.Background(), "BTC_USD")
	if err != nil {
		t.Fatalf("Orderbook() error = %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("book = %+v", book)
	}
	if book.BestBid != 100 || book.BestAsk != 102 || book.Spread != 2 {
		t.Fatalf("top of book = %v/%v spread %v", book.BestBid, book.BestAsk, book.Spread)
	}
	if book.Asks[1].Level != 1 || book.Asks[1].Price != 103 || book.Bids[0].Side != orderbookSideBid {
		t.Fatalf("levels = %+v", book)
	}
}

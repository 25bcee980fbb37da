package aptos

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/config"
)

const (
	testModule = "0xmod"
	testPool   = "0xpool"
)

func newFakeNode(t *testing.T) *HyperionReader {
	t.Helper()
	resources := map[string]string{
		"/accounts/0xpool/resource/0xmod::pool_v3::LiquidityPoolV3": `{"type":"x","data":{
			"token_a_liquidity":{"inner":"0xa1"},"token_b_liquidity":{"inner":"0xb1"},
			"fee_rate":"3000","tick_spacing":60,"liquidity":"1000",
			"sqrt_price":"36893488147419103232","tick":{"bits":100}}}`,
		"/accounts/0xa1/resource/0x1::fungible_asset::FungibleStore": `{"data":{"metadata":{"inner":"0xaa"},"balance":"500000000"}}`,
		"/accounts/0xb1/resource/0x1::fungible_asset::FungibleStore": `{"data":{"metadata":{"inner":"0xbb"},"balance":"2000000000"}}`,
		"/accounts/0xaa/resource/0x1::fungible_asset::Metadata":      `{"data":{"name":"Aptos Coin","symbol":"APT","decimals":8}}`,
		"/accounts/0xbb/resource/0x1::fungible_asset::Metadata":      `{"data":{"name":"USD Coin","symbol":"USDC","decimals":6}}`,
	}
	balances := map[string]string{"0xa1": "500000000", "0xb1": "2000000000"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"chain_id":1,"ledger_version":"123456","block_height":"789","ledger_timestamp":"1700000000000000"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/view":
			var req viewRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Function != storeBalanceFunction || len(req.Arguments) != 1 {
				http.Error(w, `{"message":"bad view"}`, http.StatusBadRequest)
				return
			}
			store, _ := req.Arguments[0].(string)
			balance, ok := balances[store]
			if !ok {
				http.Error(w, `{"message":"abort"}`, http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`["` + balance + `"]`))
		default:
			body, ok := resources[r.URL.Path]
			if !ok {
				http.Error(w, `{"error_code":"resource_not_found"}`, http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(server.Close)

	client := New(config.AptosConfig{NodeURL: server.URL, Timeout: time.Second})
	return NewHyperionReader(client, testModule, []string{testPool, " 0XPOOL ", ""})
}

func TestLedgerInfo(t *testing.T) {
	reader := newFakeNode(t)
	info, err := reader.LedgerInfo(context.Background())
	if err != nil {
		t.Fatalf("LedgerInfo() error = %v", err)
	}
	if info.ChainID != 1 || info.LedgerVersion.Float64() != 123456 {
		t.Fatalf("info = %+v", info)
	}
}

func TestPoolStateAndTokens(t *testing.T) {
	reader := newFakeNode(t)
	ctx := context.Background()

	if got := reader.PoolAddresses(); len(got) != 1 || got[0] != testPool {
		t.Fatalf("PoolAddresses() = %v", got)
	}

	pool, err := reader.Pool(ctx, testPool)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	if pool.FeeRate != 3000 || pool.TickSpacing != 60 || pool.Tick != 100 || pool.TokenAStore != "0xa1" {
		t.Fatalf("pool = %+v", pool)
	}

	tokens, err := reader.PoolTokens(ctx, testPool)
	if err != nil {
		t.Fatalf("PoolTokens() error = %v", err)
	}
	if tokens.Token0 != "0xaa" || tokens.Token1 != "0xbb" {
		t.Fatalf("tokens = %+v", tokens)
	}

	meta, err := reader.TokenMetadata(ctx, tokens.Token1)
	if err != nil || meta.Symbol != "USDC" || meta.Decimals != 6 {
		t.Fatalf("metadata = %+v, err = %v", meta, err)
	}

	fee, err := reader.PoolFee(ctx, testPool)
	if err != nil || fee != 0.003 {
		t.Fatalf("fee = %v, err = %v", fee, err)
	}
}

func TestPoolMissingIsNotFound(t *testing.T) {
	reader := newFakeNode(t)
	if _, err := reader.Pool(context.Background(), "0xmissing"); !apperr.IsNotFound(err) {
		t.Fatalf("Pool(missing) error = %v, want not found", err)
	}
	if _, err := reader.Details(context.Background(), "0xmissing"); !apperr.IsNotFound(err) {
		t.Fatalf("Details(missing) error = %v, want not found", err)
	}
}

func TestPriceReservesAndTVL(t *testing.T) {
	reader := newFakeNode(t)
	ctx := context.Background()

	price, err := reader.CurrentPrice(ctx, testPool)
	if err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	if math.Abs(price-400) > 1e-9 {
		t.Fatalf("price = %v, want 400", price)
	}

	reserves, err := reader.PoolReserves(ctx, testPool)
	if err != nil {
		t.Fatalf("PoolReserves() error = %v", err)
	}
	if reserves.Token0.String() != "500000000" || reserves.Token1.String() != "2000000000" {
		t.Fatalf("reserves = %+v", reserves)
	}

	tvl, err := reader.TVL(ctx, testPool, 10, 1)
	if err != nil {
		t.Fatalf("TVL() error = %v", err)
	}
	if math.Abs(tvl-2050) > 1e-9 {
		t.Fatalf("tvl = %v, want 2050", tvl)
	}

	perf, err := reader.Performance(ctx, testPool, 1000, 10, 1)
	if err != nil {
		t.Fatalf("Performance() error = %v", err)
	}
	want := 1000 * 0.003 * 365 / 2050 * 100
	if math.Abs(perf.EstimatedAPR-want) > 1e-9 || perf.Liquidity == nil {
		t.Fatalf("performance = %+v, want apr %v", perf, want)
	}

	details, err := reader.Details(ctx, testPool)
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if details.Token0 == nil || details.Token0.Symbol != "APT" || details.TVLOf(10, 1) != tvl {
		t.Fatalf("details = %+v", details)
	}
}

func TestPriceFromSqrtX64(t *testing.T) {
	price, err := priceFromSqrtX64("18446744073709551616", 6, 6)
	if err != nil || price != 1 {
		t.Fatalf("unit price = %v, err = %v", price, err)
	}
	if _, err := priceFromSqrtX64("nope", 0, 0); err == nil {
		t.Fatalf("expected error for malformed sqrt price")
	}
}

package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/apperr"
)

// openTestStore connects to TRADERADAR_TEST_DB_DSN inside a fresh schema and
// drops the schema when the test ends.
func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TRADERADAR_TEST_DB_DSN"))
	if dsn == "" {
		t.Skip("TRADERADAR_TEST_DB_DSN not set")
	}
	ctx := context.Background()

	admin, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open admin store: %v", err)
	}
	schema := "traderadar_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := admin.db.ExecContext(ctx, `CREATE SCHEMA `+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.db.ExecContext(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
		_ = admin.Close()
	})

	s, err := NewStore(ctx, withSearchPath(dsn, schema), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(ctx, true); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func seedTrades(t *testing.T, s *Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		status := TradeStatusPending
		if i%3 == 0 {
			status = TradeStatusCompleted
		}
		trader := "0xaaa"
		if i%2 == 0 {
			trader = "0xbbb"
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO trades (trade_obj_addr, trader_addr, trade_type, token_from, token_to,
				amount_from, amount_to, price, status, creation_timestamp, last_update_timestamp,
				last_update_event_idx, notes)
			VALUES (?, ?, ?, 'APT', 'USDC', ?, ?, ?, ?, ?, ?, 0, '')`,
			fmt.Sprintf("0xtrade%02d", i), trader, int16(TradeTypeBuy),
			int64(i*100), int64(i*90), int64(i*7%15+1)*1000, int16(status),
			int64(1_700_000_000+i), int64(1_700_000_000+i),
		); err != nil {
			t.Fatalf("seed trade %d: %v", i, err)
		}
	}
}

func TestListTradesPaginatesAndSorts(t *testing.T) {
	s := openTestStore(t)
	seedTrades(t, s, 15)

	page, err := s.ListTrades(context.Background(), TradeQuery{
		Page:   1,
		Limit:  10,
		SortBy: TradeSortPrice,
		Order:  OrderDesc,
	})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(page.Items) != 10 {
		t.Fatalf("len(items) = %d, want 10", len(page.Items))
	}
	if page.Total != 15 {
		t.Fatalf("total = %d, want 15", page.Total)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i-1].Price < page.Items[i].Price {
			t.Fatalf("items not sorted by price desc at %d: %d < %d", i, page.Items[i-1].Price, page.Items[i].Price)
		}
	}

	second, err := s.ListTrades(context.Background(), TradeQuery{Page: 2, Limit: 10, SortBy: TradeSortPrice})
	if err != nil {
		t.Fatalf("ListTrades page 2: %v", err)
	}
	if len(second.Items) != 5 || second.Total != 15 {
		t.Fatalf("page 2 = %d items, total %d", len(second.Items), second.Total)
	}
}

func TestListTradesFiltersShareTotal(t *testing.T) {
	s := openTestStore(t)
	seedTrades(t, s, 15)

	completed := TradeStatusCompleted
	page, err := s.ListTrades(context.Background(), TradeQuery{Limit: 2, Status: &completed})
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("completed total = %d, want 5", page.Total)
	}
	if int64(len(page.Items)) > page.Total || len(page.Items) > 2 {
		t.Fatalf("items = %d, total = %d", len(page.Items), page.Total)
	}
	for _, item := range page.Items {
		if item.Status != TradeStatusCompleted {
			t.Fatalf("unexpected status %v", item.Status)
		}
	}
}

func TestPointReadsReportNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetTrade(ctx, "0xmissing"); !apperr.IsNotFound(err) {
		t.Fatalf("GetTrade err = %v, want not found", err)
	}
	if _, err := s.GetMessage(ctx, "0xmissing"); !apperr.IsNotFound(err) {
		t.Fatalf("GetMessage err = %v, want not found", err)
	}
	if _, err := s.GetPool(ctx, "0xmissing"); !apperr.IsNotFound(err) {
		t.Fatalf("GetPool err = %v, want not found", err)
	}
	if _, err := s.GetLastSuccessVersion(ctx); !apperr.IsNotFound(err) {
		t.Fatalf("GetLastSuccessVersion err = %v, want not found", err)
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO processor_status (processor, last_success_version) VALUES ('a', 10), ('b', 42)`); err != nil {
		t.Fatalf("seed processor_status: %v", err)
	}
	version, err := s.GetLastSuccessVersion(ctx)
	if err != nil || version != 42 {
		t.Fatalf("GetLastSuccessVersion = %d, %v", version, err)
	}
}

func TestPoolReadsAndSnapshots(t *testing.T) {
	now := time.Unix(1_700_100_000, 0)
	s := openTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	mustExec := func(query string, args ...any) {
		t.Helper()
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	mustExec(`INSERT INTO hyperion_pools (pool_address, token0_address, token1_address, token0_symbol, token1_symbol,
		fee_tier, tick_spacing, liquidity, creation_timestamp, last_update_timestamp, last_update_version)
		VALUES ('0xp1', '0xa', '0xu', 'APT', 'USDC', 3000, 60, '5000', 1, 1, 1),
			('0xp2', '0xb', '0xu', 'BTC', 'USDC', 500, 10, '100', 1, 1, 1)`)
	mustExec(`INSERT INTO hyperion_pool_stats (pool_address, tvl_usd, volume_24h, apr, last_update_timestamp)
		VALUES ('0xp1', '250000', '40000', '17.52', 1)`)
	for i := 0; i < 4; i++ {
		mustExec(`INSERT INTO hyperion_swaps (swap_id, pool_address, sender, recipient, token_in, token_out,
			amount_in, amount_out, tx_version, event_idx, timestamp)
			VALUES (?, '0xp1', ?, '0xr', '0xa', '0xu', ?, '10', ?, 0, ?)`,
			fmt.Sprintf("s%d", i), fmt.Sprintf("0xsender%d", i%2), fmt.Sprintf("%d", (i+1)*1000), int64(i), now.Unix()-int64(i*600))
	}

	pools, err := s.ListPools(ctx)
	if err != nil {
		t.Fatalf("ListPools: %v", err)
	}
	if len(pools) != 2 || pools[0].PoolAddress != "0xp1" || pools[1].TVLUSD.Valid {
		t.Fatalf("ListPools = %+v", pools)
	}

	swaps, err := s.ListSwaps(ctx, "0xp1", 3)
	if err != nil || len(swaps) != 3 || swaps[0].SwapID != "s0" {
		t.Fatalf("ListSwaps = %+v, %v", swaps, err)
	}

	window, err := s.PoolWindowMetrics(ctx, "0xp1", 24)
	if err != nil {
		t.Fatalf("PoolWindowMetrics: %v", err)
	}
	if window.SwapCount != 4 || window.UniqueTraders != 2 || !window.TotalVolumeIn.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("PoolWindowMetrics = %+v", window)
	}

	history, err := s.PoolSwapHistory(ctx, "0xp1", 2, 0)
	if err != nil || len(history.Items) != 2 || history.Total != 4 {
		t.Fatalf("PoolSwapHistory = %+v, %v", history, err)
	}

	inserted, err := s.SnapshotPoolStats(ctx, now.Unix())
	if err != nil || inserted != 2 {
		t.Fatalf("SnapshotPoolStats = %d, %v", inserted, err)
	}
	changes, err := s.PoolLiquidityChanges(ctx, "0xp1", 24)
	if err != nil || len(changes) != 1 || !changes[0].TVLUSD.Equal(decimal.NewFromInt(250000)) {
		t.Fatalf("PoolLiquidityChanges = %+v, %v", changes, err)
	}
}

func TestPriceTicks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, price := range []string{"8.10", "8.25", "8.40"} {
		inserted, err := s.InsertPriceTick(ctx, PriceTickInput{
			Symbol:      "apt",
			Source:      "coingecko",
			Price:       decimal.RequireFromString(price),
			PublishTime: int64(1000 + i*60),
		})
		if err != nil || !inserted {
			t.Fatalf("InsertPriceTick(%s) = %v, %v", price, inserted, err)
		}
	}
	dup, err := s.InsertPriceTick(ctx, PriceTickInput{Symbol: "APT", Source: "coingecko", Price: decimal.NewFromInt(9), PublishTime: 1000})
	if err != nil || dup {
		t.Fatalf("duplicate insert = %v, %v", dup, err)
	}

	ticks, err := s.ListPriceTicks(ctx, "APT", 1060, 10)
	if err != nil || len(ticks) != 2 || ticks[0].PublishTime != 1060 {
		t.Fatalf("ListPriceTicks = %+v, %v", ticks, err)
	}
	latest, err := s.LatestPriceTick(ctx, "APT")
	if err != nil || !latest.Price.Equal(decimal.RequireFromString("8.40")) {
		t.Fatalf("LatestPriceTick = %+v, %v", latest, err)
	}
	pruned, err := s.PruneTicks(ctx, 1100)
	if err != nil || pruned != 2 {
		t.Fatalf("PruneTicks = %d, %v", pruned, err)
	}
}

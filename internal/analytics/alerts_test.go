package analytics

import (
	"testing"
	"time"
)

func samplePools() []Pool {
	return []Pool{
		{Address: "0x1", Token0: "APT", Token1: "USDC", Reserve0: 100, Reserve1: 800, TVL: 2_000_000, Volume24h: 400_000, APR: 25, PriceChange24h: 1.5},
		{Address: "0x2", Token0: "BTC", Token1: "USDC", Reserve0: 10, Reserve1: 10, TVL: 40_000, Volume24h: 5_000, APR: 250, PriceChange24h: -12},
		{Address: "0x3", Token0: "ETH", Token1: "USDC", Reserve0: 50, Reserve1: 60, TVL: 600_000, Volume24h: 6_000_000, APR: 80, PriceChange24h: 4},
		{Address: "0x4", Token0: "USDC", Token1: "APT", Reserve0: 700, Reserve1: 100, TVL: 90_000, Volume24h: 1_000, APR: 5},
	}
}

func TestBuildAlertsByCategory(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	pools := samplePools()

	liquidity := BuildAlerts(pools, CategoryLiquidity, now)
	counts := map[AlertType]int{}
	for _, alert := range liquidity {
		counts[alert.Type]++
		if alert.Timestamp != now.UnixMilli() {
			t.Fatalf("timestamp = %d", alert.Timestamp)
		}
	}
	if counts[AlertHighAPR] != 1 || counts[AlertLowLiquidity] != 2 {
		t.Fatalf("liquidity alerts = %+v", liquidity)
	}

	volume := BuildAlerts(pools, CategoryVolume, now)
	if len(volume) != 1 || volume[0].PoolAddress != "0x3" {
		t.Fatalf("volume alerts = %+v", volume)
	}

	price := BuildAlerts(pools, CategoryPrice, now)
	if len(price) != 1 || price[0].Message != "High price volatility: -12.00%" || price[0].Value != 12 {
		t.Fatalf("price alerts = %+v", price)
	}

	all := BuildAlerts(pools, CategoryAll, now)
	if len(all) < len(liquidity)+len(volume)+len(price) {
		t.Fatalf("all = %d alerts", len(all))
	}
}

func TestAlertIDsAreStable(t *testing.T) {
	pools := samplePools()
	first := BuildAlerts(pools, CategoryAll, time.Unix(1, 0))
	second := BuildAlerts(pools, CategoryAll, time.Unix(2, 0))
	if len(first) != len(second) {
		t.Fatalf("alert count changed")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("alert %d id changed: %s != %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestAlertIDsSurviveValueDrift(t *testing.T) {
	volatile := Pool{Address: "0xp", Token0: "APT", Token1: "USDC", TVL: 5_000_000, Volume24h: 100_000, APR: 10, PriceChange24h: 12.31}
	before := BuildAlerts([]Pool{volatile}, CategoryPrice, time.Unix(1, 0))
	volatile.PriceChange24h = 12.47
	after := BuildAlerts([]Pool{volatile}, CategoryPrice, time.Unix(2, 0))
	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("before = %+v, after = %+v", before, after)
	}
	if before[0].ID != after[0].ID {
		t.Fatalf("volatility alert id changed with the value: %s != %s", before[0].ID, after[0].ID)
	}
	if before[0].Message == after[0].Message {
		t.Fatalf("message should still carry the current value")
	}

	lowTVL := Pool{Address: "0xp", Token0: "APT", Token1: "USDC", TVL: 40_000}
	first := BuildAlerts([]Pool{lowTVL}, CategoryLiquidity, time.Unix(1, 0))
	lowTVL.TVL = 35_000
	second := BuildAlerts([]Pool{lowTVL}, CategoryLiquidity, time.Unix(1, 0))
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("low tvl ids: %+v vs %+v", first, second)
	}

	health := BuildAlerts([]Pool{lowTVL}, CategoryHealth, time.Unix(1, 0))
	if len(health) != 1 || health[0].ID == first[0].ID {
		t.Fatalf("health and liquidity rules share a type but must not share an id: %+v", health)
	}
}

func TestSeverityAndSorting(t *testing.T) {
	alerts := []Alert{
		{Type: AlertLowLiquidity, Value: 90_000},
		{Type: AlertHighAPR, Value: 150},
		{Type: AlertLowLiquidity, Value: 10_000},
		{Type: AlertHighAPR, Value: 300},
		{Type: AlertVolumeSpike, Value: 2_000_000},
	}
	high := FilterBySeverity(alerts, SeverityHigh)
	if len(high) != 3 {
		t.Fatalf("high = %+v", high)
	}
	medium := FilterBySeverity(alerts, SeverityMedium)
	if len(medium) != 2 {
		t.Fatalf("medium = %+v", medium)
	}

	SortAlerts(alerts)
	if alerts[0].Value != 10_000 || alerts[2].Value != 90_000 {
		t.Fatalf("low liquidity not ascending: %+v", alerts)
	}
	if alerts[1].Value != 300 || alerts[3].Value != 150 {
		t.Fatalf("high apr not descending: %+v", alerts)
	}
}

func TestParseAlertCategory(t *testing.T) {
	if c, ok := ParseAlertCategory(""); !ok || c != CategoryAll {
		t.Fatalf("empty = %v %v", c, ok)
	}
	if _, ok := ParseAlertCategory("bogus"); ok {
		t.Fatalf("bogus accepted")
	}
}

func TestPriceTargets(t *testing.T) {
	above := PriceTarget{Symbol: "APT", Above: true, Price: 12.5}
	if above.Hit(12) || !above.Hit(12.5) {
		t.Fatalf("above target")
	}
	below := PriceTarget{Symbol: "BTC", Price: 50_000}
	if !below.Hit(49_000) || below.Hit(0) {
		t.Fatalf("below target")
	}
	alert := PriceTargetAlert(above, 13, time.Unix(0, 0))
	if alert.Type != AlertPriceTarget || SeverityOf(alert) != SeverityHigh {
		t.Fatalf("alert = %+v", alert)
	}
}

func TestMarketMetricsAndTopPools(t *testing.T) {
	pools := samplePools()
	metrics := CalculateMarketMetrics(pools)
	if metrics.TotalPools != 4 || metrics.TopPoolByTVL.Address != "0x1" || metrics.TopPoolByVolume.Address != "0x3" {
		t.Fatalf("metrics = %+v", metrics)
	}
	top := TopPools(pools, MetricAPR, 2)
	if len(top) != 2 || top[0].Address != "0x2" || top[1].Address != "0x3" {
		t.Fatalf("top apr = %+v", top)
	}
	if pools[0].Address != "0x1" {
		t.Fatalf("TopPools reordered its input")
	}
	if got := CalculateMarketMetrics(nil); got.TopPoolByTVL != nil || got.TotalPools != 0 {
		t.Fatalf("empty metrics = %+v", got)
	}
}

func TestHealthScore(t *testing.T) {
	healthy := Pool{TVL: 2_000_000, Volume24h: 400_000, APR: 25, PriceChange24h: 1}
	if got := HealthScore(healthy); got != 100 {
		t.Fatalf("healthy score = %d", got)
	}
	if got := HealthScore(Pool{}); got != 10 {
		t.Fatalf("empty pool score = %d", got)
	}
}

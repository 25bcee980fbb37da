package analytics

import (
	"testing"
)

func TestMovingAverages(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	if got := SMA(prices, 2); got != 4.5 {
		t.Fatalf("SMA = %v", got)
	}
	if got := SMA(prices, 50); got != 3 {
		t.Fatalf("SMA short history = %v", got)
	}
	if got := EMA([]float64{10, 10, 10}, 3); got != 10 {
		t.Fatalf("EMA flat = %v", got)
	}
	if got := EMA(prices, 3); !almostEqual(got, 4.25) {
		t.Fatalf("EMA = %v", got)
	}
}

func TestRSI(t *testing.T) {
	if got := RSI([]float64{1, 2}, 14); got != 50 {
		t.Fatalf("short history RSI = %v", got)
	}
	rising := []float64{1, 2, 3, 4, 5}
	if got := RSI(rising, 4); got != 100 {
		t.Fatalf("rising RSI = %v", got)
	}
	mixed := []float64{10, 11, 10, 11, 10}
	if got := RSI(mixed, 4); !almostEqual(got, 50) {
		t.Fatalf("mixed RSI = %v", got)
	}
}

func TestBollingerAndCrossover(t *testing.T) {
	bands := BollingerBands([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	if bands.Middle != 5 || bands.Upper != 9 || bands.Lower != 1 {
		t.Fatalf("bands = %+v", bands)
	}

	prices := []float64{10, 10, 10, 10, 10, 9, 12}
	if got := Crossover(prices, 2, 5); got != CrossBullish {
		t.Fatalf("crossover = %s", got)
	}
	if got := Crossover(prices[:3], 2, 5); got != CrossNone {
		t.Fatalf("short crossover = %s", got)
	}
}

func TestVolatilityAndRange(t *testing.T) {
	if got := Volatility([]float64{5, 5, 5}, 10); got != 0 {
		t.Fatalf("flat volatility = %v", got)
	}
	if got := Volatility([]float64{5, 6, 5, 6}, 10); got <= 0 {
		t.Fatalf("volatility = %v", got)
	}
	high, low := HighLow([]float64{3, 9, 1, 4})
	if high != 9 || low != 1 {
		t.Fatalf("high/low = %v/%v", high, low)
	}
	if got := PercentChange([]float64{8, 10}); got != 25 {
		t.Fatalf("PercentChange = %v", got)
	}
	set := Indicators([]float64{8, 9, 10})
	if set.Samples != 3 || set.Latest != 10 || set.High != 10 || set.Low != 8 {
		t.Fatalf("set = %+v", set)
	}
}

func TestPositionMetrics(t *testing.T) {
	risky := NewPositionMetrics(PositionInput{Pair: "BTC_USD", Collateral: 100, UnrealizedPnl: 25, EntryPrice: 100, LiquidationPrice: 97, IsLong: true})
	if risky.RiskLevel != SeverityHigh || risky.PnlPercentage != 25 || risky.Direction != "LONG" {
		t.Fatalf("risky = %+v", risky)
	}
	safe := NewPositionMetrics(PositionInput{Pair: "ETH_USD", Collateral: 200, UnrealizedPnl: -50, EntryPrice: 100, LiquidationPrice: 130})
	if safe.RiskLevel != SeverityLow || safe.Direction != "SHORT" {
		t.Fatalf("safe = %+v", safe)
	}
	medium := NewPositionMetrics(PositionInput{Pair: "BTC_USD", EntryPrice: 100, LiquidationPrice: 90})
	if medium.RiskLevel != SeverityMedium {
		t.Fatalf("medium = %+v", medium)
	}

	totals, summary := SummarizePositions([]PositionMetrics{risky, safe, medium})
	if totals.TotalCollateral != 300 || totals.TotalUnrealizedPnl != -25 || totals.HighRiskPositions != 1 {
		t.Fatalf("totals = %+v", totals)
	}
	if totals.ProfitablePositions != 1 || totals.LosingPositions != 1 {
		t.Fatalf("win/loss = %+v", totals)
	}
	if summary.ByPair["BTC_USD"].Count != 2 || summary.ByRisk[SeverityMedium] != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSummarizePairs(t *testing.T) {
	pairs := []PairMetrics{
		NewPairMetrics(PairInput{Symbol: "BTC_USD", Volume24h: 100, PriceChange24h: 1, FundingRate: 0.0001}),
		NewPairMetrics(PairInput{Symbol: "ETH_USD", Volume24h: 300, PriceChange24h: -4, FundingRate: -0.0003}),
	}
	if !pairs[1].IsLongFavorable || pairs[0].IsLongFavorable {
		t.Fatalf("funding direction wrong")
	}
	summary := SummarizePairs(pairs)
	if summary.TotalVolume24h != 400 || summary.TopPairsByVolume[0].Symbol != "ETH_USD" || summary.MostVolatilePairs[0].Symbol != "ETH_USD" {
		t.Fatalf("summary = %+v", summary)
	}
}

package analytics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/store"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAPRZeroTVL(t *testing.T) {
	for _, tc := range []struct{ volume, fee float64 }{{0, 0}, {1_000_000, 0.003}, {-5, 1}} {
		if got := APR(tc.volume, 0, tc.fee); got != 0 {
			t.Errorf("APR(%v, 0, %v) = %v, want 0", tc.volume, tc.fee, got)
		}
	}
	if got := APR(10_000, 1_000_000, 0.003); !almostEqual(got, 1.095) {
		t.Errorf("APR = %v, want 1.095", got)
	}
}

func TestImpermanentLoss(t *testing.T) {
	for _, r := range []float64{0.01, 1, 3.5, 1234} {
		if got := ImpermanentLoss(r, r); !almostEqual(got, 0) {
			t.Errorf("ImpermanentLoss(%v, %v) = %v, want 0", r, r, got)
		}
	}
	// 4x move: 2*2/5 - 1 = -0.2
	if got := ImpermanentLoss(4, 1); !almostEqual(got, 20) {
		t.Errorf("ImpermanentLoss(4, 1) = %v, want 20", got)
	}
	if got := ImpermanentLoss(2, 0); got != 0 {
		t.Errorf("zero initial ratio = %v", got)
	}
}

func TestTVL(t *testing.T) {
	got := TVL(decimal.NewFromInt(250_000_000), decimal.NewFromInt(1_000_000_000), 8, 1)
	if !almostEqual(got, 30) {
		t.Fatalf("TVL = %v, want 30", got)
	}
}

func TestPriceImpact(t *testing.T) {
	quote := PriceImpact(100, 10_000, 10_000, 0)
	if !almostEqual(quote.SpotPrice, 1) {
		t.Fatalf("spot = %v", quote.SpotPrice)
	}
	wantOut := 10_000 * 100.0 / 10_100
	if !almostEqual(quote.AmountOut, wantOut) {
		t.Fatalf("amountOut = %v, want %v", quote.AmountOut, wantOut)
	}
	if quote.ImpactPercent <= 0 || quote.ImpactPercent > 1 {
		t.Fatalf("impact = %v", quote.ImpactPercent)
	}

	withFee := PriceImpact(100, 10_000, 10_000, 0.003)
	if withFee.AmountOut >= quote.AmountOut {
		t.Fatalf("fee must reduce output: %v >= %v", withFee.AmountOut, quote.AmountOut)
	}
	if (PriceImpact(100, 0, 10, 0) != SwapQuote{}) {
		t.Fatalf("empty reserves must give a zero quote")
	}
}

func TestFeeRate(t *testing.T) {
	if got := FeeRate(3000); !almostEqual(got, 0.003) {
		t.Fatalf("FeeRate(3000) = %v", got)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio([]float64{1, 1, 1}, 0.02); got != 0 {
		t.Fatalf("flat series = %v", got)
	}
	if got := SharpeRatio([]float64{1, 3}, 0); !almostEqual(got, 2) {
		t.Fatalf("SharpeRatio = %v, want 2", got)
	}
}

func TestPoolFromRecordVirtualReserves(t *testing.T) {
	swaps := int64(12)
	record := store.Pool{
		PoolAddress:  "0xp",
		Token0Symbol: "APT",
		Token1Symbol: "USDC",
		FeeTier:      500,
		Liquidity:    decimal.NewFromInt(1000),
		SqrtPriceX96: "36893488147419103232", // 2 * 2^64
		TVLUSD:       decimal.NewNullDecimal(decimal.NewFromInt(5000)),
		SwapCount24h: &swaps,
	}
	pool := PoolFromRecord(record)
	if !almostEqual(pool.Reserve0, 500) || !almostEqual(pool.Reserve1, 2000) {
		t.Fatalf("reserves = %v / %v", pool.Reserve0, pool.Reserve1)
	}
	if pool.TVL != 5000 || pool.Volume24h != 0 || pool.SwapCount24h != 12 {
		t.Fatalf("pool = %+v", pool)
	}
	if !almostEqual(pool.Fee, 0.0005) || pool.Pair() != "APT/USDC" {
		t.Fatalf("fee %v pair %s", pool.Fee, pool.Pair())
	}

	record.SqrtPriceX96 = "garbage"
	pool = PoolFromRecord(record)
	if pool.Reserve0 != 1000 || pool.Reserve1 != 1000 {
		t.Fatalf("fallback reserves = %v / %v", pool.Reserve0, pool.Reserve1)
	}
}

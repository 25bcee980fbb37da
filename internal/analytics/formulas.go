// Package analytics holds the pure numeric side of TradeRadar: pool
// formulas, alert rules, market heuristics and price indicators. Nothing in
// here performs I/O.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// reserveScale is the fixed 10^8 unit used for on-chain reserves.
var reserveScale = decimal.New(1, 8)

// TVL values both reserves in USD. Reserves are raw on-chain amounts with
// eight decimals.
func TVL(reserve0, reserve1 decimal.Decimal, price0, price1 float64) float64 {
	tvl0 := reserve0.Div(reserveScale).Mul(decimal.NewFromFloat(price0))
	tvl1 := reserve1.Div(reserveScale).Mul(decimal.NewFromFloat(price1))
	return tvl0.Add(tvl1).InexactFloat64()
}

// APR projects a year of fee revenue as a percentage of TVL. Zero TVL gives
// zero.
func APR(volume24h, tvl, fee float64) float64 {
	if tvl == 0 {
		return 0
	}
	dailyFees := volume24h * fee
	return dailyFees * 365 / tvl * 100
}

// FeeRate converts a fee tier in millionths (3000 = 0.3%) to a fraction.
func FeeRate(feeTier int32) float64 {
	return float64(feeTier) / 1_000_000
}

type SwapQuote struct {
	AmountOut      float64 `json:"amountOut"`
	SpotPrice      float64 `json:"spotPrice"`
	ExecutionPrice float64 `json:"executionPrice"`
	ImpactPercent  float64 `json:"impactPercent"`
}

// PriceImpact quotes a constant-product swap of amountIn against the given
// reserves. The fee is taken from the input before it reaches the curve.
func PriceImpact(amountIn, reserveIn, reserveOut, fee float64) SwapQuote {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return SwapQuote{}
	}
	spot := reserveOut / reserveIn
	effectiveIn := amountIn * (1 - fee)
	amountOut := reserveOut * effectiveIn / (reserveIn + effectiveIn)
	execution := amountOut / amountIn
	return SwapQuote{
		AmountOut:      amountOut,
		SpotPrice:      spot,
		ExecutionPrice: execution,
		ImpactPercent:  (spot - execution) / spot * 100,
	}
}

// ImpermanentLoss returns the loss, in percent, of providing liquidity
// versus holding after the price ratio moved from initialRatio to
// currentRatio.
func ImpermanentLoss(currentRatio, initialRatio float64) float64 {
	if initialRatio == 0 {
		return 0
	}
	r := currentRatio / initialRatio
	if r < 0 {
		return 0
	}
	loss := 2*math.Sqrt(r)/(1+r) - 1
	return math.Abs(loss) * 100
}

// SharpeRatio of a return series over riskFreeRate. A flat series gives 0.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, stdDev := meanStdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return (mean - riskFreeRate) / stdDev
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// meanStdDev uses the population variance.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values))
	return m, math.Sqrt(variance)
}

// percentChanges maps a series to its step-over-step percentage changes.
// Steps from a zero value are reported as 0.
func percentChanges(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (series[i]-prev)/prev*100)
	}
	return out
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

package analytics

import (
	"math"
	"sort"

	"github.com/traderadar/backend/internal/store"
)

// The thresholds below are heuristics, not fitted models.

type TrendDirection string

const (
	Bullish TrendDirection = "bullish"
	Bearish TrendDirection = "bearish"
	Neutral TrendDirection = "neutral"
)

type TrendIndicators struct {
	PriceChange     float64 `json:"priceChange"`
	VolumeChange    float64 `json:"volumeChange"`
	LiquidityChange float64 `json:"liquidityChange"`
}

type Trend struct {
	Direction  TrendDirection  `json:"direction"`
	Strength   float64         `json:"strength"`
	Indicators TrendIndicators `json:"indicators"`
}

// AnalyzeTrend compares currentPrice with the first price in the window and
// the newer half of the volume window with the older half.
func AnalyzeTrend(currentPrice float64, prices, volumes []float64) Trend {
	if len(prices) < 2 || len(volumes) < 2 || prices[0] == 0 {
		return Trend{Direction: Neutral}
	}

	priceChange := (currentPrice - prices[0]) / prices[0] * 100

	half := len(volumes) / 2
	oldAvg := mean(volumes[:half])
	newAvg := mean(volumes[half:])
	var volumeChange float64
	if oldAvg > 0 {
		volumeChange = (newAvg - oldAvg) / oldAvg * 100
	}

	trend := Trend{
		Direction:  Neutral,
		Indicators: TrendIndicators{PriceChange: priceChange, VolumeChange: volumeChange},
	}
	switch {
	case priceChange > 2 && volumeChange > 20:
		trend.Direction = Bullish
		trend.Strength = math.Min(math.Abs(priceChange)+math.Abs(volumeChange)/2, 100)
	case priceChange < -2 && volumeChange > 20:
		trend.Direction = Bearish
		trend.Strength = math.Min(math.Abs(priceChange)+math.Abs(volumeChange)/2, 100)
	case math.Abs(priceChange) > 5:
		trend.Direction = Bearish
		if priceChange > 0 {
			trend.Direction = Bullish
		}
		trend.Strength = math.Min(math.Abs(priceChange), 100)
	}
	return trend
}

type ArbitrageOpportunity struct {
	Pool1            string  `json:"pool1"`
	Pool2            string  `json:"pool2"`
	TokenPair        string  `json:"tokenPair"`
	PriceDiscrepancy float64 `json:"priceDiscrepancy"`
	PotentialProfit  float64 `json:"potentialProfit"`
	Volume           float64 `json:"volume"`
}

// DetectArbitrage compares every pair of pools trading the same tokens in
// either order and keeps discrepancies of at least minProfitPercent. Profit
// assumes 80% of the smaller pool's volume can be captured.
func DetectArbitrage(pools []Pool, minProfitPercent float64) []ArbitrageOpportunity {
	out := make([]ArbitrageOpportunity, 0)
	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			a, b := pools[i], pools[j]
			samePair := (a.Token0 == b.Token0 && a.Token1 == b.Token1) ||
				(a.Token0 == b.Token1 && a.Token1 == b.Token0)
			if !samePair || a.Reserve0 <= 0 || b.Reserve0 <= 0 {
				continue
			}
			price1 := a.Reserve1 / a.Reserve0
			price2 := b.Reserve1 / b.Reserve0
			lower := math.Min(price1, price2)
			if lower <= 0 {
				continue
			}
			discrepancy := math.Abs(price1-price2) / lower * 100
			if discrepancy < minProfitPercent {
				continue
			}
			volume := math.Min(a.Volume24h, b.Volume24h)
			out = append(out, ArbitrageOpportunity{
				Pool1:            a.Address,
				Pool2:            b.Address,
				TokenPair:        a.Pair(),
				PriceDiscrepancy: discrepancy,
				PotentialProfit:  discrepancy / 100 * volume * 0.8,
				Volume:           volume,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PotentialProfit > out[j].PotentialProfit })
	return out
}

type LiquidityDepth struct {
	Depth         float64  `json:"depth"`
	Concentration float64  `json:"concentration"`
	Stability     float64  `json:"stability"`
	RiskScore     float64  `json:"riskScore"`
	RiskLevel     Severity `json:"riskLevel"`
}

func AnalyzeLiquidityDepth(pool Pool) LiquidityDepth {
	total := pool.Reserve0 + pool.Reserve1
	var concentration float64
	if total > 0 {
		concentration = math.Abs(pool.Reserve0-pool.Reserve1) / total
	}
	turnover := VolumeToTVL(pool)

	var risk float64
	if pool.TVL < lowTVLThreshold {
		risk += 30
	}
	if concentration > 0.7 {
		risk += 25
	}
	if turnover > 3 {
		risk += 20
	}
	if pool.APR > 200 {
		risk += 15
	}
	if math.Abs(pool.PriceChange24h) > 15 {
		risk += 10
	}
	risk = math.Min(risk, 100)

	return LiquidityDepth{
		Depth:         total / 2,
		Concentration: concentration,
		Stability:     math.Max(0, 100-turnover*50),
		RiskScore:     risk,
		RiskLevel:     RiskLevel(risk),
	}
}

// RiskLevel buckets a 0-100 risk score.
func RiskLevel(score float64) Severity {
	switch {
	case score > 70:
		return SeverityHigh
	case score > 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type ImpermanentLossReport struct {
	Percentage               float64 `json:"percentage"`
	InitialRatio             float64 `json:"initialRatio"`
	CurrentRatio             float64 `json:"currentRatio"`
	EstimatedDailyFeesEarned float64 `json:"estimatedDailyFeesEarned"`
	NetDailyReturn           float64 `json:"netDailyReturn"`
	BreakEvenDays            float64 `json:"breakEvenDays"`
}

// ImpermanentLossFor measures a pool's current reserve ratio against
// initialRatio and sets the loss against one day of fee income.
func ImpermanentLossFor(pool Pool, initialRatio float64) ImpermanentLossReport {
	current := pool.Reserve1 / math.Max(pool.Reserve0, 1)
	loss := ImpermanentLoss(current, initialRatio)
	var fees float64
	if pool.APR > 0 {
		fees = pool.TVL * (pool.APR / 100) / 365
	}
	lossValue := pool.TVL * loss / 100
	report := ImpermanentLossReport{
		Percentage:               loss,
		InitialRatio:             initialRatio,
		CurrentRatio:             current,
		EstimatedDailyFeesEarned: fees,
		NetDailyReturn:           fees - lossValue,
	}
	if loss > 0 && fees > 0 {
		report.BreakEvenDays = lossValue / fees
	}
	return report
}

type Prediction struct {
	ExpectedChange float64 `json:"expectedChange"`
	Confidence     float64 `json:"confidence"`
	Timeframe      string  `json:"timeframe"`
}

// PredictPriceMovement extrapolates the mean change of the last five prices,
// scaled by the latest volume relative to the recent average.
func PredictPriceMovement(prices, volumes []float64) Prediction {
	out := Prediction{Timeframe: "24h"}
	if len(prices) < 3 {
		return out
	}
	changes := percentChanges(lastN(prices, 5))
	avgChange, volatility := meanStdDev(changes)

	predicted := avgChange
	if recent := lastN(volumes, 5); len(recent) > 0 {
		if avgVolume := mean(recent); avgVolume > 0 {
			switch ratio := recent[len(recent)-1] / avgVolume; {
			case ratio > 1.5:
				predicted *= 1.3
			case ratio < 0.7:
				predicted *= 0.7
			}
		}
	}

	out.ExpectedChange = predicted
	out.Confidence = math.Max(0, math.Min(100, 100-volatility*10))
	return out
}

type Regime string

const (
	RegimeRanging  Regime = "ranging"
	RegimeTrending Regime = "trending"
	RegimeVolatile Regime = "volatile"
	RegimeStable   Regime = "stable"
)

// IdentifyRegime needs at least ten points of each series and reports
// stable otherwise.
func IdentifyRegime(prices, volumes []float64) Regime {
	if len(prices) < 10 || len(volumes) < 10 {
		return RegimeStable
	}
	avgChange, volatility := meanStdDev(percentChanges(prices))
	avgVolume, volumeStdDev := meanStdDev(volumes)

	switch {
	case volatility > 10:
		return RegimeVolatile
	case math.Abs(avgChange) > 3 && volatility < 5:
		return RegimeTrending
	case volatility < 2 && avgVolume > 0 && volumeStdDev/avgVolume < 0.5:
		return RegimeStable
	default:
		return RegimeRanging
	}
}

// RebalanceHours suggests how soon to rebalance a position given the
// deviation of the pool's reserve ratio from targetRatio. Zero means no
// rebalance is needed.
func RebalanceHours(pool Pool, targetRatio float64) int {
	if targetRatio == 0 || pool.Reserve0 == 0 {
		return 0
	}
	current := pool.Reserve1 / pool.Reserve0
	deviation := math.Abs(current-targetRatio) / targetRatio
	switch {
	case deviation < 0.05:
		return 0
	case deviation < 0.1:
		return 24
	case deviation < 0.2:
		return 12
	default:
		return 6
	}
}

type ManipulationReport struct {
	Suspicious bool     `json:"suspicious"`
	RiskLevel  Severity `json:"riskLevel"`
	Indicators []string `json:"indicators"`
}

// DetectManipulation compares the latest volume and price change with the
// history before them.
func DetectManipulation(volumes, prices []float64) ManipulationReport {
	report := ManipulationReport{RiskLevel: SeverityLow, Indicators: []string{}}
	if len(volumes) < 10 || len(prices) < 10 {
		return report
	}

	latestVolume := volumes[len(volumes)-1]
	if latestVolume > mean(volumes[:len(volumes)-1])*10 {
		report.Indicators = append(report.Indicators, "Abnormal volume spike detected")
	}

	changes := percentChanges(prices)
	latestChange := changes[len(changes)-1]
	if math.Abs(latestChange) > math.Abs(mean(changes[:len(changes)-1]))*5 {
		report.Indicators = append(report.Indicators, "Sudden price movement detected")
	}
	if sameSign(lastN(changes, 5)) {
		report.Indicators = append(report.Indicators, "Unidirectional price movement")
	}

	report.Suspicious = len(report.Indicators) > 0
	report.RiskLevel = levelForCount(len(report.Indicators))
	return report
}

type UnusualActivity struct {
	HasUnusualActivity bool     `json:"hasUnusualActivity"`
	Indicators         []string `json:"indicators"`
	Severity           Severity `json:"severity"`
}

// DetectUnusualActivity compares the last hour of a pool with its hourly
// average over the last day. Liquidity withdrawals count when the pool lost
// more than half of its liquidity over the hour.
func DetectUnusualActivity(lastHour, lastDay store.PoolWindowMetrics, liquidity []store.LiquiditySnapshot) UnusualActivity {
	out := UnusualActivity{Indicators: []string{}, Severity: SeverityLow}

	hourlyVolume := lastHour.TotalVolumeIn.InexactFloat64()
	avgHourlyVolume := lastDay.TotalVolumeIn.InexactFloat64() / 24
	if hourlyVolume > 0 && hourlyVolume > avgHourlyVolume*5 {
		out.Indicators = append(out.Indicators, "Volume spike detected (5x average)")
	}
	if lastHour.SwapCount > 0 && float64(lastHour.SwapCount) > float64(lastDay.SwapCount)/24*10 {
		out.Indicators = append(out.Indicators, "Unusual number of transactions")
	}
	if len(liquidity) >= 2 {
		first := liquidity[0].Liquidity.InexactFloat64()
		last := liquidity[len(liquidity)-1].Liquidity.InexactFloat64()
		if first > 0 && last < first/2 {
			out.Indicators = append(out.Indicators, "Significant liquidity withdrawal")
		}
	}

	out.HasUnusualActivity = len(out.Indicators) > 0
	out.Severity = levelForCount(len(out.Indicators))
	return out
}

func levelForCount(indicators int) Severity {
	switch {
	case indicators >= 3:
		return SeverityHigh
	case indicators >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func sameSign(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	up, down := true, true
	for _, v := range values {
		up = up && v > 0
		down = down && v < 0
	}
	return up || down
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// SeriesFromBuckets derives an implied price (volume out per unit in) and a
// total volume per time bucket.
func SeriesFromBuckets(buckets []store.VolumeBucket) (prices, volumes []float64) {
	prices = make([]float64, 0, len(buckets))
	volumes = make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		in := bucket.VolumeIn.InexactFloat64()
		out := bucket.VolumeOut.InexactFloat64()
		prices = append(prices, out/math.Max(in, 1))
		volumes = append(volumes, in+out)
	}
	return prices, volumes
}

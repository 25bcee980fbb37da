package analytics

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/traderadar/backend/internal/store"
)

// Pool is the numeric view of a Hyperion pool that every pool formula and
// alert rule works on.
type Pool struct {
	Address          string  `json:"address"`
	Token0           string  `json:"token0"`
	Token1           string  `json:"token1"`
	Reserve0         float64 `json:"reserve0"`
	Reserve1         float64 `json:"reserve1"`
	TVL              float64 `json:"tvl"`
	Volume24h        float64 `json:"volume24h"`
	APR              float64 `json:"apr"`
	Fee              float64 `json:"fee"`
	PriceChange24h   float64 `json:"priceChange24h"`
	SwapCount24h     int64   `json:"swapCount24h"`
	UniqueTraders24h int64   `json:"uniqueTraders24h"`
}

func (p Pool) Pair() string { return p.Token0 + "/" + p.Token1 }

var q64 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 64))

// PoolFromRecord converts a stored pool row. Missing stats read as zero.
// Reserves are the virtual CLMM reserves L/sqrtP and L*sqrtP; when the sqrt
// price is unknown both fall back to the raw liquidity.
func PoolFromRecord(record store.Pool) Pool {
	liquidity := record.Liquidity.InexactFloat64()
	pool := Pool{
		Address:        record.PoolAddress,
		Token0:         record.Token0Symbol,
		Token1:         record.Token1Symbol,
		Reserve0:       liquidity,
		Reserve1:       liquidity,
		TVL:            record.TVLUSD.Decimal.InexactFloat64(),
		Volume24h:      record.Volume24h.Decimal.InexactFloat64(),
		APR:            record.APR.Decimal.InexactFloat64(),
		Fee:            FeeRate(record.FeeTier),
		PriceChange24h: record.PriceChange24h.Decimal.InexactFloat64(),
	}
	if record.SwapCount24h != nil {
		pool.SwapCount24h = *record.SwapCount24h
	}
	if record.UniqueTraders24h != nil {
		pool.UniqueTraders24h = *record.UniqueTraders24h
	}
	if sqrtPrice, ok := sqrtPriceFromX64(record.SqrtPriceX96); ok && liquidity > 0 {
		pool.Reserve0 = liquidity / sqrtPrice
		pool.Reserve1 = liquidity * sqrtPrice
	}
	return pool
}

func PoolsFromRecords(records []store.Pool) []Pool {
	out := make([]Pool, 0, len(records))
	for _, record := range records {
		out = append(out, PoolFromRecord(record))
	}
	return out
}

func sqrtPriceFromX64(raw string) (float64, bool) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return 0, false
	}
	ratio, _ := new(big.Float).Quo(new(big.Float).SetInt(value), q64).Float64()
	if ratio <= 0 || math.IsInf(ratio, 0) {
		return 0, false
	}
	return ratio, true
}

// FindPool returns the pool with the given address.
func FindPool(pools []Pool, address string) (Pool, bool) {
	for _, pool := range pools {
		if pool.Address == address {
			return pool, true
		}
	}
	return Pool{}, false
}

type PoolRef struct {
	Address   string  `json:"address"`
	Pair      string  `json:"pair"`
	TVL       float64 `json:"tvl,omitempty"`
	Volume24h float64 `json:"volume24h,omitempty"`
}

type MarketMetrics struct {
	TotalTVL        float64  `json:"totalTVL"`
	Total24hVolume  float64  `json:"total24hVolume"`
	TotalPools      int      `json:"totalPools"`
	AvgAPR          float64  `json:"avgAPR"`
	TopPoolByTVL    *PoolRef `json:"topPoolByTVL"`
	TopPoolByVolume *PoolRef `json:"topPoolByVolume"`
	AvgHealthScore  float64  `json:"avgHealthScore"`
}

func CalculateMarketMetrics(pools []Pool) MarketMetrics {
	out := MarketMetrics{TotalPools: len(pools)}
	if len(pools) == 0 {
		return out
	}
	var aprSum, healthSum float64
	topTVL, topVolume := pools[0], pools[0]
	for _, pool := range pools {
		out.TotalTVL += pool.TVL
		out.Total24hVolume += pool.Volume24h
		aprSum += pool.APR
		healthSum += float64(HealthScore(pool))
		if pool.TVL > topTVL.TVL {
			topTVL = pool
		}
		if pool.Volume24h > topVolume.Volume24h {
			topVolume = pool
		}
	}
	out.AvgAPR = aprSum / float64(len(pools))
	out.AvgHealthScore = healthSum / float64(len(pools))
	out.TopPoolByTVL = &PoolRef{Address: topTVL.Address, Pair: topTVL.Pair(), TVL: topTVL.TVL}
	out.TopPoolByVolume = &PoolRef{Address: topVolume.Address, Pair: topVolume.Pair(), Volume24h: topVolume.Volume24h}
	return out
}

// PoolMetric is the closed set of ranking keys for TopPools.
type PoolMetric string

const (
	MetricTVL       PoolMetric = "tvl"
	MetricVolume24h PoolMetric = "volume24h"
	MetricAPR       PoolMetric = "apr"
)

func (m PoolMetric) value(pool Pool) float64 {
	switch m {
	case MetricVolume24h:
		return pool.Volume24h
	case MetricAPR:
		return pool.APR
	default:
		return pool.TVL
	}
}

// TopPools returns at most limit pools ranked by metric, highest first. The
// input slice is not modified.
func TopPools(pools []Pool, metric PoolMetric, limit int) []Pool {
	sorted := append([]Pool(nil), pools...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return metric.value(sorted[i]) > metric.value(sorted[j])
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// VolumeSurges returns pools whose 24h volume exceeds threshold times the
// average 24h volume across all pools.
func VolumeSurges(pools []Pool, threshold float64) []Pool {
	if len(pools) == 0 {
		return nil
	}
	var total float64
	for _, pool := range pools {
		total += pool.Volume24h
	}
	avg := total / float64(len(pools))
	if avg <= 0 {
		return nil
	}
	out := make([]Pool, 0)
	for _, pool := range pools {
		if pool.Volume24h > avg*threshold {
			out = append(out, pool)
		}
	}
	return out
}

// HealthScore rates a pool 0-100 from depth, turnover, yield sanity and
// price stability.
func HealthScore(pool Pool) int {
	score := 0

	switch {
	case pool.TVL >= 1_000_000:
		score += 40
	case pool.TVL >= 500_000:
		score += 30
	case pool.TVL >= 100_000:
		score += 20
	case pool.TVL > 0:
		score += 10
	}

	turnover := VolumeToTVL(pool)
	switch {
	case turnover >= 0.1 && turnover <= 3:
		score += 30
	case turnover > 3:
		score += 15
	case turnover > 0:
		score += 10
	}

	switch {
	case pool.APR > 0 && pool.APR <= 100:
		score += 20
	case pool.APR > 100 && pool.APR <= 200:
		score += 10
	}

	switch change := math.Abs(pool.PriceChange24h); {
	case change <= 5:
		score += 10
	case change <= 15:
		score += 5
	}

	return score
}

func VolumeToTVL(pool Pool) float64 {
	if pool.TVL <= 0 {
		return 0
	}
	return pool.Volume24h / pool.TVL
}

// Efficiency buckets the volume/TVL ratio.
func Efficiency(volumeToTVL float64) string {
	switch {
	case volumeToTVL > 1:
		return "high"
	case volumeToTVL > 0.5:
		return "medium"
	default:
		return "low"
	}
}

type Sentiment struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

type MarketOverview struct {
	TotalTVL       float64   `json:"totalTVL"`
	TotalVolume24h float64   `json:"totalVolume24h"`
	AverageAPR     float64   `json:"averageAPR"`
	TotalPools     int       `json:"totalPools"`
	Sentiment      Sentiment `json:"sentiment"`
}

// Overview splits pools into bullish (>2%), bearish (<-2%) and neutral by
// 24h price change.
func Overview(pools []Pool) MarketOverview {
	out := MarketOverview{TotalPools: len(pools)}
	for _, pool := range pools {
		out.TotalTVL += pool.TVL
		out.TotalVolume24h += pool.Volume24h
		out.AverageAPR += pool.APR
		switch {
		case pool.PriceChange24h > 2:
			out.Sentiment.Bullish++
		case pool.PriceChange24h < -2:
			out.Sentiment.Bearish++
		default:
			out.Sentiment.Neutral++
		}
	}
	if len(pools) > 0 {
		out.AverageAPR /= float64(len(pools))
	}
	return out
}

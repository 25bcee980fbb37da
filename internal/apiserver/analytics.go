package apiserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/aptos"
)

const (
	trendWindowHours        = 168
	manipulationWindowHours = 72
	seriesIntervalMinutes   = 60
)

type marketOverviewResponse struct {
	MarketOverview analytics.MarketOverview `json:"marketOverview"`
}

type arbitrageResponse struct {
	Opportunities      []analytics.ArbitrageOpportunity `json:"opportunities"`
	Count              int                              `json:"count"`
	MinProfitThreshold float64                          `json:"minProfitThreshold"`
}

type liquidityDepthResponse struct {
	PoolAddress    string                   `json:"poolAddress"`
	LiquidityDepth analytics.LiquidityDepth `json:"liquidityDepth"`
}

type trendResponse struct {
	PoolAddress  string               `json:"poolAddress"`
	Trend        analytics.Trend      `json:"trend"`
	MarketRegime analytics.Regime     `json:"marketRegime"`
	Prediction   analytics.Prediction `json:"prediction"`
}

type impermanentLossResponse struct {
	PoolAddress     string                          `json:"poolAddress"`
	ImpermanentLoss analytics.ImpermanentLossReport `json:"impermanentLoss"`
}

type manipulationResponse struct {
	PoolAddress  string                       `json:"poolAddress"`
	Manipulation analytics.ManipulationReport `json:"manipulation"`
	Timestamp    int64                        `json:"timestamp"`
}

type performanceView struct {
	CurrentPrice     float64         `json:"currentPrice"`
	Liquidity        *aptos.Reserves `json:"liquidity"`
	Fee              float64         `json:"fee"`
	EstimatedAPR     float64         `json:"estimatedAPR"`
	VolumeToTVLRatio float64         `json:"volumeToTVLRatio"`
	Efficiency       string          `json:"efficiency"`
}

type performanceResponse struct {
	PoolAddress string          `json:"poolAddress"`
	Performance performanceView `json:"performance"`
}

type priceImpactResponse struct {
	PoolAddress string              `json:"poolAddress"`
	Direction   string              `json:"direction"`
	AmountIn    float64             `json:"amountIn"`
	PriceImpact analytics.SwapQuote `json:"priceImpact"`
}

type unusualActivityResponse struct {
	PoolAddress     string                    `json:"poolAddress"`
	UnusualActivity analytics.UnusualActivity `json:"unusualActivity"`
	Timestamp       int64                     `json:"timestamp"`
}

type rebalanceResponse struct {
	PoolAddress    string  `json:"poolAddress"`
	TargetRatio    float64 `json:"targetRatio"`
	CurrentRatio   float64 `json:"currentRatio"`
	RebalanceHours int     `json:"rebalanceHours"`
	NeedsRebalance bool    `json:"needsRebalance"`
}

// poolRequired lists the analyses that need ?pool= and their 400 message.
var poolRequired = map[string]string{
	"liquidity-depth":  "Pool address is required for liquidity depth analysis",
	"trend":            "Pool address is required for trend analysis",
	"impermanent-loss": "Pool address is required for IL calculation",
	"manipulation":     "Pool address is required for manipulation detection",
	"performance":      "Pool address is required for performance metrics",
	"price-impact":     "Pool address is required for price impact",
	"unusual-activity": "Pool address is required for unusual activity detection",
	"rebalance":        "Pool address is required for rebalance timing",
}

func (s *Service) handleMarketAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	analysis := queryParam(r, "analysis")
	if analysis == "" {
		analysis = "overview"
	}
	pool := queryParam(r, "pool")
	if message, ok := poolRequired[analysis]; ok && pool == "" {
		s.respondError(w, http.StatusBadRequest, message)
		return
	}
	ctx := r.Context()
	const failure = "Failed to perform market analysis"

	// findPool loads the indexed pools and picks one; it answers the request
	// itself when the pool is missing or loading fails.
	findPool := func() (analytics.Pool, bool) {
		pools, err := s.loadPools(ctx)
		if err != nil {
			s.respondFailure(w, err, failure)
			return analytics.Pool{}, false
		}
		found, ok := analytics.FindPool(pools, pool)
		if !ok {
			s.respondError(w, http.StatusNotFound, "Pool not found")
		}
		return found, ok
	}

	switch analysis {
	case "overview":
		pools, err := s.loadPools(ctx)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		s.respondJSON(w, http.StatusOK, marketOverviewResponse{MarketOverview: analytics.Overview(pools)})

	case "arbitrage":
		minProfit, err := parseOptionalFloat(r, "minProfit", 1.0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pools, err := s.loadPools(ctx)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		opportunities := analytics.DetectArbitrage(pools, minProfit)
		s.respondJSON(w, http.StatusOK, arbitrageResponse{
			Opportunities:      opportunities,
			Count:              len(opportunities),
			MinProfitThreshold: minProfit,
		})

	case "liquidity-depth":
		found, ok := findPool()
		if !ok {
			return
		}
		s.respondJSON(w, http.StatusOK, liquidityDepthResponse{PoolAddress: pool, LiquidityDepth: analytics.AnalyzeLiquidityDepth(found)})

	case "trend":
		buckets, err := s.store.PoolVolumeTimeSeries(ctx, pool, seriesIntervalMinutes, trendWindowHours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		prices, volumes := analytics.SeriesFromBuckets(buckets)
		var current float64
		if len(prices) > 0 {
			current = prices[len(prices)-1]
		}
		s.respondJSON(w, http.StatusOK, trendResponse{
			PoolAddress:  pool,
			Trend:        analytics.AnalyzeTrend(current, prices, volumes),
			MarketRegime: analytics.IdentifyRegime(prices, volumes),
			Prediction:   analytics.PredictPriceMovement(prices, volumes),
		})

	case "impermanent-loss":
		initialRatio, err := parseOptionalFloat(r, "initialRatio", 1.0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		found, ok := findPool()
		if !ok {
			return
		}
		s.respondJSON(w, http.StatusOK, impermanentLossResponse{
			PoolAddress:     pool,
			ImpermanentLoss: analytics.ImpermanentLossFor(found, initialRatio),
		})

	case "manipulation":
		buckets, err := s.store.PoolVolumeTimeSeries(ctx, pool, seriesIntervalMinutes, manipulationWindowHours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		prices, volumes := analytics.SeriesFromBuckets(buckets)
		s.respondJSON(w, http.StatusOK, manipulationResponse{
			PoolAddress:  pool,
			Manipulation: analytics.DetectManipulation(volumes, prices),
			Timestamp:    s.now().UnixMilli(),
		})

	case "performance":
		perf, indexed, err := s.poolPerformance(ctx, pool)
		if apperr.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "Pool not found on blockchain")
			return
		}
		if err != nil {
			s.respondUpstreamFailure(w, err, "Failed to fetch pool metrics")
			return
		}
		var turnover float64
		if indexed != nil {
			turnover = analytics.VolumeToTVL(*indexed)
		}
		s.respondJSON(w, http.StatusOK, performanceResponse{
			PoolAddress: pool,
			Performance: performanceView{
				CurrentPrice:     perf.CurrentPrice,
				Liquidity:        perf.Liquidity,
				Fee:              perf.Fee,
				EstimatedAPR:     perf.EstimatedAPR,
				VolumeToTVLRatio: turnover,
				Efficiency:       analytics.Efficiency(turnover),
			},
		})

	case "price-impact":
		amountIn, err := parseOptionalFloat(r, "amountIn", 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if amountIn <= 0 {
			s.respondError(w, http.StatusBadRequest, "amountIn must be positive")
			return
		}
		direction := queryParam(r, "direction")
		if direction == "" {
			direction = "0to1"
		}
		if direction != "0to1" && direction != "1to0" {
			s.respondError(w, http.StatusBadRequest, "direction must be 0to1 or 1to0")
			return
		}
		found, ok := findPool()
		if !ok {
			return
		}
		reserveIn, reserveOut := found.Reserve0, found.Reserve1
		if direction == "1to0" {
			reserveIn, reserveOut = reserveOut, reserveIn
		}
		s.respondJSON(w, http.StatusOK, priceImpactResponse{
			PoolAddress: pool,
			Direction:   direction,
			AmountIn:    amountIn,
			PriceImpact: analytics.PriceImpact(amountIn, reserveIn, reserveOut, found.Fee),
		})

	case "unusual-activity":
		lastHour, err := s.store.PoolWindowMetrics(ctx, pool, 1)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		lastDay, err := s.store.PoolWindowMetrics(ctx, pool, 24)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		liquidity, err := s.store.PoolLiquidityChanges(ctx, pool, 1)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		s.respondJSON(w, http.StatusOK, unusualActivityResponse{
			PoolAddress:     pool,
			UnusualActivity: analytics.DetectUnusualActivity(lastHour, lastDay, liquidity),
			Timestamp:       s.now().UnixMilli(),
		})

	case "rebalance":
		target, err := parseOptionalFloat(r, "targetRatio", 1.0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		found, ok := findPool()
		if !ok {
			return
		}
		var current float64
		if found.Reserve0 > 0 {
			current = found.Reserve1 / found.Reserve0
		}
		hours := analytics.RebalanceHours(found, target)
		s.respondJSON(w, http.StatusOK, rebalanceResponse{
			PoolAddress:    pool,
			TargetRatio:    target,
			CurrentRatio:   current,
			RebalanceHours: hours,
			NeedsRebalance: hours > 0,
		})

	default:
		s.respondError(w, http.StatusBadRequest, "Invalid analysis type")
	}
}

type historySwap struct {
	TransactionHash string  `json:"transactionHash"`
	Sender          string  `json:"sender"`
	PoolAddress     string  `json:"poolAddress"`
	AmountIn        float64 `json:"amountIn"`
	AmountOut       float64 `json:"amountOut"`
	TokenIn         string  `json:"tokenIn"`
	TokenOut        string  `json:"tokenOut"`
	Timestamp       int64   `json:"timestamp"`
	BlockHeight     int64   `json:"blockHeight"`
	Date            string  `json:"date"`
}

type pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

type swapHistoryMetrics struct {
	TotalVolumeIn  float64 `json:"totalVolumeIn"`
	TotalVolumeOut float64 `json:"totalVolumeOut"`
	UniqueTraders  int     `json:"uniqueTraders"`
	AvgSwapSize    float64 `json:"avgSwapSize"`
}

type swapHistoryResponse struct {
	Swaps       []historySwap      `json:"swaps"`
	Count       int                `json:"count"`
	PoolAddress string             `json:"poolAddress"`
	Pagination  pagination         `json:"pagination"`
	Metrics     swapHistoryMetrics `json:"metrics"`
}

type seriesPoint struct {
	Timestamp   int64   `json:"timestamp"`
	Date        string  `json:"date"`
	SwapCount   int64   `json:"swapCount"`
	VolumeIn    float64 `json:"volumeIn"`
	VolumeOut   float64 `json:"volumeOut"`
	TotalVolume float64 `json:"totalVolume"`
}

type seriesMetrics struct {
	TotalVolume        float64 `json:"totalVolume"`
	TotalSwaps         int64   `json:"totalSwaps"`
	AvgVolumePerBucket float64 `json:"avgVolumePerBucket"`
	PeakVolume         float64 `json:"peakVolume"`
	PeakVolumeTime     int64   `json:"peakVolumeTime"`
}

type seriesResponse struct {
	TimeSeries  []seriesPoint `json:"timeSeries"`
	Count       int           `json:"count"`
	PoolAddress string        `json:"poolAddress"`
	Interval    string        `json:"interval"`
	Timeframe   string        `json:"timeframe"`
	Metrics     seriesMetrics `json:"metrics"`
}

type liquidityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
	Liquidity float64 `json:"liquidity"`
	TVLUSD    float64 `json:"tvlUsd"`
}

type liquidityMetrics struct {
	CurrentLiquidity float64 `json:"currentLiquidity"`
	InitialLiquidity float64 `json:"initialLiquidity"`
	LiquidityChange  float64 `json:"liquidityChange"`
	CurrentTVL       float64 `json:"currentTVL"`
	InitialTVL       float64 `json:"initialTVL"`
	TVLChange        float64 `json:"tvlChange"`
}

type liquidityResponse struct {
	LiquidityChanges []liquidityPoint `json:"liquidityChanges"`
	Count            int              `json:"count"`
	PoolAddress      string           `json:"poolAddress"`
	Timeframe        string           `json:"timeframe"`
	Metrics          liquidityMetrics `json:"metrics"`
}

type mostActivePool struct {
	PoolAddress      string  `json:"poolAddress"`
	Token0           string  `json:"token0"`
	Token1           string  `json:"token1"`
	Pair             string  `json:"pair"`
	SwapCount        int64   `json:"swapCount"`
	UniqueTraders    int64   `json:"uniqueTraders"`
	TotalVolume      float64 `json:"totalVolume"`
	AvgVolumePerSwap float64 `json:"avgVolumePerSwap"`
}

type mostActiveMetrics struct {
	TotalVolume        float64 `json:"totalVolume"`
	TotalSwaps         int64   `json:"totalSwaps"`
	TotalUniqueTraders int64   `json:"totalUniqueTraders"`
	AvgVolumePerPool   float64 `json:"avgVolumePerPool"`
}

type mostActiveResponse struct {
	Pools     []mostActivePool  `json:"pools"`
	Count     int               `json:"count"`
	Timeframe string            `json:"timeframe"`
	Metrics   mostActiveMetrics `json:"metrics"`
}

func isoDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

func percentDelta(initial, current float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (current - initial) / initial * 100
}

func timeframe(hours int) string {
	return strconv.Itoa(hours) + "h"
}

func (s *Service) handlePoolHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	action := queryParam(r, "action")
	if action == "" {
		action = "swaps"
	}
	pool := queryParam(r, "pool")
	ctx := r.Context()
	const failure = "Failed to fetch pool history"

	hours, err := parseOptionalInt(r, "hours", 24)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "swaps":
		if pool == "" {
			s.respondError(w, http.StatusBadRequest, "Pool address is required for swap history")
			return
		}
		limit, err := parseOptionalInt(r, "limit", 50)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := parseOptionalInt(r, "offset", 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		page, err := s.store.PoolSwapHistory(ctx, pool, limit, offset)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		swaps := make([]historySwap, 0, len(page.Items))
		var metrics swapHistoryMetrics
		traders := make(map[string]struct{})
		for _, swap := range page.Items {
			item := historySwap{
				TransactionHash: swap.TransactionHash,
				Sender:          swap.Sender,
				PoolAddress:     swap.PoolAddress,
				AmountIn:        swap.AmountIn.InexactFloat64(),
				AmountOut:       swap.AmountOut.InexactFloat64(),
				TokenIn:         swap.TokenIn,
				TokenOut:        swap.TokenOut,
				Timestamp:       swap.Timestamp,
				BlockHeight:     swap.BlockHeight,
				Date:            isoDate(swap.Timestamp),
			}
			metrics.TotalVolumeIn += item.AmountIn
			metrics.TotalVolumeOut += item.AmountOut
			traders[swap.Sender] = struct{}{}
			swaps = append(swaps, item)
		}
		metrics.UniqueTraders = len(traders)
		metrics.AvgSwapSize = ratio(metrics.TotalVolumeIn, float64(len(swaps)))
		s.respondJSON(w, http.StatusOK, swapHistoryResponse{
			Swaps:       swaps,
			Count:       len(swaps),
			PoolAddress: pool,
			Pagination: pagination{
				Limit:   page.Limit,
				Offset:  offset,
				Total:   page.Total,
				HasMore: int64(offset+len(swaps)) < page.Total,
			},
			Metrics: metrics,
		})

	case "volume-timeseries":
		if pool == "" {
			s.respondError(w, http.StatusBadRequest, "Pool address is required for volume timeseries")
			return
		}
		interval, err := parseOptionalInt(r, "interval", 60)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		buckets, err := s.store.PoolVolumeTimeSeries(ctx, pool, interval, hours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		points := make([]seriesPoint, 0, len(buckets))
		var metrics seriesMetrics
		for _, bucket := range buckets {
			in, out := bucket.VolumeIn.InexactFloat64(), bucket.VolumeOut.InexactFloat64()
			point := seriesPoint{
				Timestamp:   bucket.TimeBucket,
				Date:        isoDate(bucket.TimeBucket),
				SwapCount:   bucket.SwapCount,
				VolumeIn:    in,
				VolumeOut:   out,
				TotalVolume: in + out,
			}
			metrics.TotalVolume += point.TotalVolume
			metrics.TotalSwaps += point.SwapCount
			if len(points) == 0 || point.TotalVolume > metrics.PeakVolume {
				metrics.PeakVolume = point.TotalVolume
				metrics.PeakVolumeTime = point.Timestamp
			}
			points = append(points, point)
		}
		metrics.AvgVolumePerBucket = ratio(metrics.TotalVolume, float64(len(points)))
		s.respondJSON(w, http.StatusOK, seriesResponse{
			TimeSeries:  points,
			Count:       len(points),
			PoolAddress: pool,
			Interval:    strconv.Itoa(interval) + "m",
			Timeframe:   timeframe(hours),
			Metrics:     metrics,
		})

	case "liquidity-changes":
		if pool == "" {
			s.respondError(w, http.StatusBadRequest, "Pool address is required for liquidity changes")
			return
		}
		snapshots, err := s.store.PoolLiquidityChanges(ctx, pool, hours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		points := make([]liquidityPoint, 0, len(snapshots))
		for _, snapshot := range snapshots {
			points = append(points, liquidityPoint{
				Timestamp: snapshot.SnapshotTime,
				Date:      isoDate(snapshot.SnapshotTime),
				Liquidity: snapshot.Liquidity.InexactFloat64(),
				TVLUSD:    snapshot.TVLUSD.InexactFloat64(),
			})
		}
		var metrics liquidityMetrics
		if len(points) > 0 {
			first, last := points[0], points[len(points)-1]
			metrics = liquidityMetrics{
				CurrentLiquidity: last.Liquidity,
				InitialLiquidity: first.Liquidity,
				LiquidityChange:  percentDelta(first.Liquidity, last.Liquidity),
				CurrentTVL:       last.TVLUSD,
				InitialTVL:       first.TVLUSD,
				TVLChange:        percentDelta(first.TVLUSD, last.TVLUSD),
			}
		}
		s.respondJSON(w, http.StatusOK, liquidityResponse{
			LiquidityChanges: points,
			Count:            len(points),
			PoolAddress:      pool,
			Timeframe:        timeframe(hours),
			Metrics:          metrics,
		})

	case "most-active":
		limit, err := parseOptionalInt(r, "limit", 10)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		active, err := s.store.MostActivePools(ctx, limit, hours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		pools := make([]mostActivePool, 0, len(active))
		var metrics mostActiveMetrics
		for _, item := range active {
			volume := item.TotalVolume.InexactFloat64()
			pools = append(pools, mostActivePool{
				PoolAddress:      item.PoolAddress,
				Token0:           item.Token0Symbol,
				Token1:           item.Token1Symbol,
				Pair:             item.Token0Symbol + "/" + item.Token1Symbol,
				SwapCount:        item.SwapCount,
				UniqueTraders:    item.UniqueTraders,
				TotalVolume:      volume,
				AvgVolumePerSwap: ratio(volume, float64(item.SwapCount)),
			})
			metrics.TotalVolume += volume
			metrics.TotalSwaps += item.SwapCount
			metrics.TotalUniqueTraders += item.UniqueTraders
		}
		metrics.AvgVolumePerPool = ratio(metrics.TotalVolume, float64(len(pools)))
		s.respondJSON(w, http.StatusOK, mostActiveResponse{
			Pools:     pools,
			Count:     len(pools),
			Timeframe: timeframe(hours),
			Metrics:   metrics,
		})

	default:
		s.respondError(w, http.StatusBadRequest, "Invalid action parameter")
	}
}

type traderView struct {
	Address          string  `json:"address"`
	SwapCount        int64   `json:"swapCount"`
	TotalVolume      float64 `json:"totalVolume"`
	PoolsTraded      int64   `json:"poolsTraded"`
	AvgVolumePerSwap float64 `json:"avgVolumePerSwap"`
}

type tradersMetrics struct {
	TotalVolume        float64 `json:"totalVolume"`
	TotalSwaps         int64   `json:"totalSwaps"`
	AvgVolumePerTrader float64 `json:"avgVolumePerTrader"`
	AvgSwapsPerTrader  float64 `json:"avgSwapsPerTrader"`
}

type topTradersResponse struct {
	Traders   []traderView   `json:"traders"`
	Count     int            `json:"count"`
	Timeframe string         `json:"timeframe"`
	Metrics   tradersMetrics `json:"metrics"`
}

type largeTradeView struct {
	TransactionHash string  `json:"transactionHash"`
	Trader          string  `json:"trader"`
	PoolAddress     string  `json:"poolAddress"`
	Pair            string  `json:"pair"`
	AmountIn        float64 `json:"amountIn"`
	AmountOut       float64 `json:"amountOut"`
	Timestamp       int64   `json:"timestamp"`
	Date            string  `json:"date"`
}

type largeTradesMetrics struct {
	TotalVolumeIn  float64 `json:"totalVolumeIn"`
	TotalVolumeOut float64 `json:"totalVolumeOut"`
	UniqueTraders  int     `json:"uniqueTraders"`
	UniquePools    int     `json:"uniquePools"`
	AvgTradeSize   float64 `json:"avgTradeSize"`
}

type largeTradesResponse struct {
	Trades    []largeTradeView   `json:"trades"`
	Count     int                `json:"count"`
	MinVolume float64            `json:"minVolume"`
	Metrics   largeTradesMetrics `json:"metrics"`
}

func (s *Service) handleTraders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	action := queryParam(r, "action")
	if action == "" {
		action = "top"
	}
	limit, err := parseOptionalInt(r, "limit", 10)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := parseOptionalInt(r, "hours", 24)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	const failure = "Failed to fetch trader analytics"

	switch action {
	case "top":
		activity, err := s.store.TopTraders(r.Context(), limit, hours)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		traders := make([]traderView, 0, len(activity))
		var metrics tradersMetrics
		for _, trader := range activity {
			volume := trader.TotalVolume.InexactFloat64()
			traders = append(traders, traderView{
				Address:          trader.Sender,
				SwapCount:        trader.SwapCount,
				TotalVolume:      volume,
				PoolsTraded:      trader.PoolsTraded,
				AvgVolumePerSwap: ratio(volume, float64(trader.SwapCount)),
			})
			metrics.TotalVolume += volume
			metrics.TotalSwaps += trader.SwapCount
		}
		metrics.AvgVolumePerTrader = ratio(metrics.TotalVolume, float64(len(traders)))
		metrics.AvgSwapsPerTrader = ratio(float64(metrics.TotalSwaps), float64(len(traders)))
		s.respondJSON(w, http.StatusOK, topTradersResponse{
			Traders:   traders,
			Count:     len(traders),
			Timeframe: timeframe(hours),
			Metrics:   metrics,
		})

	case "large-trades":
		minVolume, err := parseOptionalFloat(r, "minVolume", 1000)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		large, err := s.store.RecentLargeTrades(r.Context(), decimal.NewFromFloat(minVolume), limit)
		if err != nil {
			s.respondFailure(w, err, failure)
			return
		}
		trades := make([]largeTradeView, 0, len(large))
		var metrics largeTradesMetrics
		traders := make(map[string]struct{})
		pools := make(map[string]struct{})
		for _, trade := range large {
			item := largeTradeView{
				TransactionHash: trade.TransactionHash,
				Trader:          trade.Sender,
				PoolAddress:     trade.PoolAddress,
				Pair:            trade.Token0Symbol + "/" + trade.Token1Symbol,
				AmountIn:        trade.AmountIn.InexactFloat64(),
				AmountOut:       trade.AmountOut.InexactFloat64(),
				Timestamp:       trade.Timestamp,
				Date:            isoDate(trade.Timestamp),
			}
			metrics.TotalVolumeIn += item.AmountIn
			metrics.TotalVolumeOut += item.AmountOut
			traders[item.Trader] = struct{}{}
			pools[item.PoolAddress] = struct{}{}
			trades = append(trades, item)
		}
		metrics.UniqueTraders = len(traders)
		metrics.UniquePools = len(pools)
		metrics.AvgTradeSize = ratio(metrics.TotalVolumeIn, float64(len(trades)))
		s.respondJSON(w, http.StatusOK, largeTradesResponse{
			Trades:    trades,
			Count:     len(trades),
			MinVolume: minVolume,
			Metrics:   metrics,
		})

	default:
		s.respondError(w, http.StatusBadRequest, "Invalid action parameter")
	}
}

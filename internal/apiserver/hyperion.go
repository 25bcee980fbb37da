package apiserver

import (
	"context"
	"net/http"
	"sort"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/aptos"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/store"
)

type poolsResponse struct {
	Pools []store.Pool `json:"pools"`
	Count int          `json:"count"`
}

type poolResponse struct {
	Pool store.Pool `json:"pool"`
}

type swapsResponse struct {
	Swaps []store.Swap `json:"swaps"`
	Count int          `json:"count"`
	Pool  string       `json:"pool"`
}

func (s *Service) handlePools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}

	if address := queryParam(r, "address"); address != "" {
		pool, err := s.store.GetPool(r.Context(), address)
		if apperr.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "Pool not found")
			return
		}
		if err != nil {
			s.respondFailure(w, err, "Failed to fetch pool data")
			return
		}
		s.respondJSON(w, http.StatusOK, poolResponse{Pool: pool})
		return
	}

	pools, err := s.store.ListPools(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch pool data")
		return
	}
	s.respondJSON(w, http.StatusOK, poolsResponse{Pools: pools, Count: len(pools)})
}

func (s *Service) handleSwaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	limit, err := parseOptionalInt(r, "limit", 100)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	pool := queryParam(r, "pool")

	swaps, err := s.store.ListSwaps(r.Context(), pool, limit)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch swap data")
		return
	}
	if pool == "" {
		pool = "all"
	}
	s.respondJSON(w, http.StatusOK, swapsResponse{Swaps: swaps, Count: len(swaps), Pool: pool})
}

type activePool struct {
	PoolAddress   string  `json:"poolAddress"`
	Token0        string  `json:"token0"`
	Token1        string  `json:"token1"`
	SwapCount     int64   `json:"swapCount"`
	UniqueTraders int64   `json:"uniqueTraders"`
	TotalVolume   float64 `json:"totalVolume"`
}

type topPoolsView struct {
	View  string       `json:"view"`
	Pools []activePool `json:"pools"`
	Count int          `json:"count"`
}

type volumePoint struct {
	Timestamp   int64   `json:"timestamp"`
	SwapCount   int64   `json:"swapCount"`
	VolumeIn    float64 `json:"volumeIn"`
	VolumeOut   float64 `json:"volumeOut"`
	TotalVolume float64 `json:"totalVolume"`
}

type timeseriesView struct {
	PoolAddress     string        `json:"poolAddress"`
	View            string        `json:"view"`
	IntervalMinutes int           `json:"intervalMinutes"`
	Hours           int           `json:"hours"`
	Data            []volumePoint `json:"data"`
	Count           int           `json:"count"`
}

func (s *Service) handleVolume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	hours, err := parseOptionalInt(r, "hours", 24)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	interval, err := parseOptionalInt(r, "interval", 60)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseOptionalInt(r, "limit", 10)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := queryParam(r, "view")
	pool := queryParam(r, "pool")
	if view != "top-pools" && pool != "" {
		buckets, err := s.store.PoolVolumeTimeSeries(r.Context(), pool, interval, hours)
		if err != nil {
			s.respondFailure(w, err, "Failed to fetch volume data")
			return
		}
		data := make([]volumePoint, 0, len(buckets))
		for _, bucket := range buckets {
			in, out := bucket.VolumeIn.InexactFloat64(), bucket.VolumeOut.InexactFloat64()
			data = append(data, volumePoint{
				Timestamp:   bucket.TimeBucket,
				SwapCount:   bucket.SwapCount,
				VolumeIn:    in,
				VolumeOut:   out,
				TotalVolume: in + out,
			})
		}
		s.respondJSON(w, http.StatusOK, timeseriesView{
			PoolAddress:     pool,
			View:            "timeseries",
			IntervalMinutes: interval,
			Hours:           hours,
			Data:            data,
			Count:           len(data),
		})
		return
	}

	active, err := s.store.MostActivePools(r.Context(), limit, hours)
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch volume data")
		return
	}
	pools := make([]activePool, 0, len(active))
	for _, item := range active {
		pools = append(pools, activePool{
			PoolAddress:   item.PoolAddress,
			Token0:        item.Token0Symbol,
			Token1:        item.Token1Symbol,
			SwapCount:     item.SwapCount,
			UniqueTraders: item.UniqueTraders,
			TotalVolume:   item.TotalVolume.InexactFloat64(),
		})
	}
	s.respondJSON(w, http.StatusOK, topPoolsView{View: "top-pools", Pools: pools, Count: len(pools)})
}

// poolView is one row of the ranking responses.
type poolView struct {
	Address        string  `json:"address"`
	Pair           string  `json:"pair"`
	HealthScore    *int    `json:"healthScore,omitempty"`
	TVL            float64 `json:"tvl"`
	Volume24h      float64 `json:"volume24h"`
	APR            float64 `json:"apr"`
	PriceChange24h float64 `json:"priceChange24h"`
}

func newPoolView(pool analytics.Pool) poolView {
	return poolView{
		Address:        pool.Address,
		Pair:           pool.Pair(),
		TVL:            pool.TVL,
		Volume24h:      pool.Volume24h,
		APR:            pool.APR,
		PriceChange24h: pool.PriceChange24h,
	}
}

func poolViews(pools []analytics.Pool) []poolView {
	out := make([]poolView, 0, len(pools))
	for _, pool := range pools {
		out = append(out, newPoolView(pool))
	}
	return out
}

type rankingResponse struct {
	Metric    string     `json:"metric"`
	Threshold *float64   `json:"threshold,omitempty"`
	Pools     []poolView `json:"pools"`
}

type overviewResponse struct {
	Metrics analytics.MarketMetrics      `json:"metrics"`
	Totals  *store.AggregatedPoolMetrics `json:"totals,omitempty"`
}

type noPoolsResponse struct {
	Error   string `json:"error"`
	Metrics any    `json:"metrics"`
}

var topMetrics = map[string]analytics.PoolMetric{
	"top-tvl":    analytics.MetricTVL,
	"top-volume": analytics.MetricVolume24h,
	"top-apr":    analytics.MetricAPR,
}

func (s *Service) loadPools(ctx context.Context) ([]analytics.Pool, error) {
	records, err := s.store.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.PoolsFromRecords(records), nil
}

func (s *Service) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	metric := queryParam(r, "metric")
	if metric == "" {
		metric = "overview"
	}
	limit, err := parseOptionalInt(r, "limit", 10)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pools, err := s.loadPools(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to calculate metrics")
		return
	}
	if len(pools) == 0 {
		s.respondJSON(w, http.StatusOK, noPoolsResponse{Error: "No pools available"})
		return
	}

	switch metric {
	case "overview":
		out := overviewResponse{Metrics: analytics.CalculateMarketMetrics(pools)}
		if totals, err := s.store.AggregatedPoolMetrics(r.Context()); err == nil {
			out.Totals = &totals
		} else {
			s.logger.Warn("aggregate pool metrics failed", "err", err)
		}
		s.respondJSON(w, http.StatusOK, out)
	case "top-tvl", "top-volume", "top-apr":
		ranked := analytics.TopPools(pools, topMetrics[metric], limit)
		s.respondJSON(w, http.StatusOK, rankingResponse{Metric: metric, Pools: poolViews(ranked)})
	case "volume-surges":
		threshold, err := parseOptionalFloat(r, "threshold", 2.0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		surges := analytics.VolumeSurges(pools, threshold)
		s.respondJSON(w, http.StatusOK, rankingResponse{Metric: metric, Threshold: &threshold, Pools: poolViews(surges)})
	case "health-scores":
		views := make([]poolView, 0, len(pools))
		for _, pool := range pools {
			view := newPoolView(pool)
			score := analytics.HealthScore(pool)
			view.HealthScore = &score
			views = append(views, view)
		}
		sort.SliceStable(views, func(i, j int) bool { return *views[i].HealthScore > *views[j].HealthScore })
		if limit > 0 && len(views) > limit {
			views = views[:limit]
		}
		s.respondJSON(w, http.StatusOK, rankingResponse{Metric: metric, Pools: views})
	default:
		s.respondError(w, http.StatusBadRequest, "Invalid metric type")
	}
}

type alertFilters struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

type alertsResponse struct {
	Alerts    []analytics.Alert `json:"alerts"`
	Count     int               `json:"count"`
	Timestamp int64             `json:"timestamp"`
	Filters   alertFilters      `json:"filters"`
}

func (s *Service) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	category, ok := analytics.ParseAlertCategory(queryParam(r, "type"))
	if !ok {
		s.respondError(w, http.StatusBadRequest, "Invalid alert type")
		return
	}
	filters := alertFilters{Type: string(category), Severity: "all"}
	var severity analytics.Severity
	if raw := queryParam(r, "severity"); raw != "" {
		severity, ok = analytics.ParseSeverity(raw)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "Invalid severity")
			return
		}
		filters.Severity = string(severity)
	}

	pools, err := s.loadPools(r.Context())
	if err != nil {
		s.respondFailure(w, err, "Failed to fetch alerts")
		return
	}

	now := s.now()
	alerts := analytics.BuildAlerts(pools, category, now)
	if severity != "" {
		alerts = analytics.FilterBySeverity(alerts, severity)
	}
	analytics.SortAlerts(alerts)

	s.respondJSON(w, http.StatusOK, alertsResponse{
		Alerts:    alerts,
		Count:     len(alerts),
		Timestamp: now.UnixMilli(),
		Filters:   filters,
	})
}

type chainPoolsResponse struct {
	Pools []string `json:"pools"`
	Count int      `json:"count"`
}

type chainPool struct {
	aptos.Details
	TVL float64 `json:"tvl"`
}

type chainPoolResponse struct {
	Pool chainPool `json:"pool"`
}

type chainMetrics struct {
	CurrentPrice float64         `json:"currentPrice"`
	Liquidity    *aptos.Reserves `json:"liquidity"`
	Fee          float64         `json:"fee"`
	EstimatedAPR float64         `json:"estimatedAPR"`
}

type chainMetricsResponse struct {
	Pool    string       `json:"pool"`
	Metrics chainMetrics `json:"metrics"`
}

type ledgerResponse struct {
	Ledger aptos.LedgerInfo `json:"ledger"`
}

func (s *Service) handleBlockchain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	action := queryParam(r, "action")
	if action == "" {
		action = "pool"
	}
	pool := queryParam(r, "pool")
	ctx := r.Context()

	switch {
	case action == "pools":
		addresses := s.chain.PoolAddresses()
		s.respondJSON(w, http.StatusOK, chainPoolsResponse{Pools: addresses, Count: len(addresses)})
	case action == "ledger":
		info, err := s.chain.LedgerInfo(ctx)
		if err != nil {
			s.respondUpstreamFailure(w, err, "Failed to fetch blockchain data")
			return
		}
		s.respondJSON(w, http.StatusOK, ledgerResponse{Ledger: info})
	case action == "pool" && pool != "":
		details, err := s.chain.Details(ctx, pool)
		if apperr.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "Pool not found on blockchain")
			return
		}
		if err != nil {
			s.respondUpstreamFailure(w, err, "Failed to fetch blockchain data")
			return
		}
		var tvl float64
		if details.Token0 != nil && details.Token1 != nil {
			price0, price1 := s.tokenPrices(ctx, details.Token0.Symbol, details.Token1.Symbol)
			tvl = details.TVLOf(price0, price1)
		}
		s.respondJSON(w, http.StatusOK, chainPoolResponse{Pool: chainPool{Details: details, TVL: tvl}})
	case action == "metrics" && pool != "":
		perf, _, err := s.poolPerformance(ctx, pool)
		if apperr.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "Pool not found on blockchain")
			return
		}
		if err != nil {
			s.respondUpstreamFailure(w, err, "Failed to fetch blockchain data")
			return
		}
		s.respondJSON(w, http.StatusOK, chainMetricsResponse{
			Pool: pool,
			Metrics: chainMetrics{
				CurrentPrice: perf.CurrentPrice,
				Liquidity:    perf.Liquidity,
				Fee:          perf.Fee,
				EstimatedAPR: perf.EstimatedAPR,
			},
		})
	default:
		s.respondError(w, http.StatusBadRequest, "Invalid action or missing pool parameter")
	}
}

// tokenPrices prices two symbols in one oracle call. Symbols the oracle
// cannot price read as zero.
func (s *Service) tokenPrices(ctx context.Context, symbol0, symbol1 string) (float64, float64) {
	prices, err := s.oracle.PairPrices(ctx, symbol0+"/"+symbol1)
	if err != nil {
		s.logger.Warn("token prices incomplete", "token0", symbol0, "token1", symbol1, "err", err)
	}
	return prices[0], prices[1]
}

// poolPerformance estimates on-chain performance using the indexed 24h
// volume when the pool is indexed, and reports the indexed view if any.
func (s *Service) poolPerformance(ctx context.Context, address string) (aptos.Performance, *analytics.Pool, error) {
	var indexed *analytics.Pool
	if record, err := s.store.GetPool(ctx, address); err == nil {
		pool := analytics.PoolFromRecord(record)
		indexed = &pool
	} else if !apperr.IsNotFound(err) {
		return aptos.Performance{}, nil, err
	}

	var symbol0, symbol1 string
	var volume float64
	if indexed != nil {
		symbol0, symbol1, volume = indexed.Token0, indexed.Token1, indexed.Volume24h
	} else {
		details, err := s.chain.Details(ctx, address)
		if err != nil {
			return aptos.Performance{}, nil, err
		}
		if details.Token0 != nil && details.Token1 != nil {
			symbol0, symbol1 = details.Token0.Symbol, details.Token1.Symbol
		}
	}

	var price0, price1 float64
	if symbol0 != "" && symbol1 != "" {
		price0, price1 = s.tokenPrices(ctx, symbol0, symbol1)
	}
	perf, err := s.chain.Performance(ctx, address, volume, price0, price1)
	if err != nil {
		return aptos.Performance{}, nil, err
	}
	return perf, indexed, nil
}

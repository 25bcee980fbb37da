package store

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

type PoolWindowMetrics struct {
	PoolAddress    string          `json:"pool_address"`
	Hours          int             `json:"hours"`
	SwapCount      int64           `json:"swap_count"`
	UniqueTraders  int64           `json:"unique_traders"`
	TotalVolumeIn  decimal.Decimal `json:"total_volume_in"`
	TotalVolumeOut decimal.Decimal `json:"total_volume_out"`
}

type AggregatedPoolMetrics struct {
	TotalPools       int64           `json:"total_pools"`
	TotalTVL         decimal.Decimal `json:"total_tvl"`
	TotalVolume24h   decimal.Decimal `json:"total_volume_24h"`
	TotalFees24h     decimal.Decimal `json:"total_fees_24h"`
	AvgAPR           decimal.Decimal `json:"avg_apr"`
	TotalSwaps24h    int64           `json:"total_swaps_24h"`
	UniqueTraders24h int64           `json:"unique_traders_24h"`
}

type TraderActivity struct {
	Sender      string          `json:"sender"`
	SwapCount   int64           `json:"swap_count"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	PoolsTraded int64           `json:"pools_traded"`
}

type VolumeBucket struct {
	TimeBucket int64           `json:"time_bucket"`
	SwapCount  int64           `json:"swap_count"`
	VolumeIn   decimal.Decimal `json:"volume_in"`
	VolumeOut  decimal.Decimal `json:"volume_out"`
}

type PoolActivity struct {
	PoolAddress   string          `json:"pool_address"`
	Token0Symbol  string          `json:"token0_symbol"`
	Token1Symbol  string          `json:"token1_symbol"`
	SwapCount     int64           `json:"swap_count"`
	UniqueTraders int64           `json:"unique_traders"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
}

type LargeTrade struct {
	Swap
	Token0Symbol string `json:"token0_symbol"`
	Token1Symbol string `json:"token1_symbol"`
}

type LiquiditySnapshot struct {
	PoolAddress  string          `json:"pool_address"`
	SnapshotTime int64           `json:"snapshot_time"`
	Liquidity    decimal.Decimal `json:"liquidity"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
	APR          decimal.Decimal `json:"apr"`
}

const (
	defaultWindowHours = 24
	maxWindowHours     = 24 * 90
)

func normalizeHours(hours int) int {
	return clampLimit(hours, defaultWindowHours, maxWindowHours)
}

func (s *Store) PoolWindowMetrics(ctx context.Context, pool string, hours int) (PoolWindowMetrics, error) {
	hours = normalizeHours(hours)
	out := PoolWindowMetrics{PoolAddress: strings.TrimSpace(pool), Hours: hours}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(DISTINCT sender),
			COALESCE(SUM(CAST(amount_in AS NUMERIC)), 0),
			COALESCE(SUM(CAST(amount_out AS NUMERIC)), 0)
		FROM hyperion_swaps
		WHERE pool_address = ? AND timestamp >= ?`,
		out.PoolAddress, s.sinceUnix(hours),
	).Scan(&out.SwapCount, &out.UniqueTraders, &out.TotalVolumeIn, &out.TotalVolumeOut)
	if err != nil {
		return PoolWindowMetrics{}, queryErr("pool window metrics", err)
	}
	return out, nil
}

func (s *Store) AggregatedPoolMetrics(ctx context.Context) (AggregatedPoolMetrics, error) {
	var out AggregatedPoolMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CAST(tvl_usd AS NUMERIC)), 0),
			COALESCE(SUM(CAST(volume_24h AS NUMERIC)), 0),
			COALESCE(SUM(CAST(fees_24h AS NUMERIC)), 0),
			COALESCE(AVG(CAST(apr AS NUMERIC)), 0),
			COALESCE(SUM(swap_count_24h), 0),
			COALESCE(SUM(unique_traders_24h), 0)
		FROM hyperion_pool_stats`,
	).Scan(
		&out.TotalPools,
		&out.TotalTVL,
		&out.TotalVolume24h,
		&out.TotalFees24h,
		&out.AvgAPR,
		&out.TotalSwaps24h,
		&out.UniqueTraders24h,
	)
	if err != nil {
		return AggregatedPoolMetrics{}, queryErr("aggregated pool metrics", err)
	}
	return out, nil
}

// PoolSwapHistory pages through one pool's swaps, newest first.
func (s *Store) PoolSwapHistory(ctx context.Context, pool string, limit, offset int) (Page[Swap], error) {
	limit = clampLimit(limit, 50, maxPageLimit)
	if offset < 0 {
		offset = 0
	}
	pool = strings.TrimSpace(pool)

	items, err := s.querySwaps(ctx, "pool swap history",
		`SELECT `+swapColumns+` FROM hyperion_swaps
		WHERE pool_address = ?
		ORDER BY timestamp DESC, swap_id DESC
		LIMIT ? OFFSET ?`,
		pool, limit, offset,
	)
	if err != nil {
		return Page[Swap]{}, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hyperion_swaps WHERE pool_address = ?`, pool).Scan(&total); err != nil {
		return Page[Swap]{}, queryErr("count pool swaps", err)
	}
	return Page[Swap]{Items: items, Total: total, Page: offset/limit + 1, Limit: limit}, nil
}

func (s *Store) TopTraders(ctx context.Context, limit, hours int) ([]TraderActivity, error) {
	limit = clampLimit(limit, 10, maxPageLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender,
			COUNT(*) AS swap_count,
			COALESCE(SUM(CAST(amount_in AS NUMERIC)), 0) AS total_volume,
			COUNT(DISTINCT pool_address) AS pools_traded
		FROM hyperion_swaps
		WHERE timestamp >= ?
		GROUP BY sender
		ORDER BY total_volume DESC, sender ASC
		LIMIT ?`,
		s.sinceUnix(normalizeHours(hours)), limit,
	)
	if err != nil {
		return nil, queryErr("top traders", err)
	}
	defer rows.Close()

	items := make([]TraderActivity, 0, limit)
	for rows.Next() {
		var item TraderActivity
		if err := rows.Scan(&item.Sender, &item.SwapCount, &item.TotalVolume, &item.PoolsTraded); err != nil {
			return nil, queryErr("scan trader activity", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("top traders", err)
	}
	return items, nil
}

// PoolVolumeTimeSeries buckets swaps by floor(timestamp / interval).
func (s *Store) PoolVolumeTimeSeries(ctx context.Context, pool string, intervalMinutes, hours int) ([]VolumeBucket, error) {
	intervalMinutes = clampLimit(intervalMinutes, 60, 24*60)
	bucketSeconds := int64(intervalMinutes) * 60

	rows, err := s.db.QueryContext(ctx, `
		SELECT (timestamp / ?) * ? AS time_bucket,
			COUNT(*),
			COALESCE(SUM(CAST(amount_in AS NUMERIC)), 0),
			COALESCE(SUM(CAST(amount_out AS NUMERIC)), 0)
		FROM hyperion_swaps
		WHERE pool_address = ? AND timestamp >= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC`,
		bucketSeconds, bucketSeconds, strings.TrimSpace(pool), s.sinceUnix(normalizeHours(hours)),
	)
	if err != nil {
		return nil, queryErr("pool volume time series", err)
	}
	defer rows.Close()

	items := make([]VolumeBucket, 0, 32)
	for rows.Next() {
		var item VolumeBucket
		if err := rows.Scan(&item.TimeBucket, &item.SwapCount, &item.VolumeIn, &item.VolumeOut); err != nil {
			return nil, queryErr("scan volume bucket", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("pool volume time series", err)
	}
	return items, nil
}

func (s *Store) MostActivePools(ctx context.Context, limit, hours int) ([]PoolActivity, error) {
	limit = clampLimit(limit, 10, maxPageLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.pool_address, p.token0_symbol, p.token1_symbol,
			COUNT(sw.swap_id) AS swap_count,
			COUNT(DISTINCT sw.sender) AS unique_traders,
			COALESCE(SUM(CAST(sw.amount_in AS NUMERIC)), 0) AS total_volume
		FROM hyperion_swaps sw
		JOIN hyperion_pools p ON p.pool_address = sw.pool_address
		WHERE sw.timestamp >= ?
		GROUP BY p.pool_address, p.token0_symbol, p.token1_symbol
		ORDER BY total_volume DESC, p.pool_address ASC
		LIMIT ?`,
		s.sinceUnix(normalizeHours(hours)), limit,
	)
	if err != nil {
		return nil, queryErr("most active pools", err)
	}
	defer rows.Close()

	items := make([]PoolActivity, 0, limit)
	for rows.Next() {
		var item PoolActivity
		if err := rows.Scan(
			&item.PoolAddress,
			&item.Token0Symbol,
			&item.Token1Symbol,
			&item.SwapCount,
			&item.UniqueTraders,
			&item.TotalVolume,
		); err != nil {
			return nil, queryErr("scan pool activity", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("most active pools", err)
	}
	return items, nil
}

func (s *Store) RecentLargeTrades(ctx context.Context, minVolume decimal.Decimal, limit int) ([]LargeTrade, error) {
	limit = clampLimit(limit, 20, maxPageLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT sw.swap_id, sw.transaction_hash, sw.block_height, sw.pool_address, sw.sender, sw.recipient,
			sw.token_in, sw.token_out, sw.amount_in, sw.amount_out, sw.sqrt_price_x96_after,
			sw.liquidity_after, sw.tick_after, sw.tx_version, sw.event_idx, sw.timestamp,
			p.token0_symbol, p.token1_symbol
		FROM hyperion_swaps sw
		JOIN hyperion_pools p ON p.pool_address = sw.pool_address
		WHERE CAST(sw.amount_in AS NUMERIC) >= ?
		ORDER BY sw.timestamp DESC, sw.swap_id DESC
		LIMIT ?`,
		minVolume.String(), limit,
	)
	if err != nil {
		return nil, queryErr("recent large trades", err)
	}
	defer rows.Close()

	items := make([]LargeTrade, 0, limit)
	for rows.Next() {
		var item LargeTrade
		if err := rows.Scan(
			&item.SwapID,
			&item.TransactionHash,
			&item.BlockHeight,
			&item.PoolAddress,
			&item.Sender,
			&item.Recipient,
			&item.TokenIn,
			&item.TokenOut,
			&item.AmountIn,
			&item.AmountOut,
			&item.SqrtPriceX96After,
			&item.LiquidityAfter,
			&item.TickAfter,
			&item.TxVersion,
			&item.EventIdx,
			&item.Timestamp,
			&item.Token0Symbol,
			&item.Token1Symbol,
		); err != nil {
			return nil, queryErr("scan large trade", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("recent large trades", err)
	}
	return items, nil
}

// PoolLiquidityChanges reads the tracker's snapshots for one pool, oldest
// first.
func (s *Store) PoolLiquidityChanges(ctx context.Context, pool string, hours int) ([]LiquiditySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_address, snapshot_time, liquidity, tvl_usd, volume_24h, apr
		FROM hyperion_pool_stat_history
		WHERE pool_address = ? AND snapshot_time >= ?
		ORDER BY snapshot_time ASC`,
		strings.TrimSpace(pool), s.sinceUnix(normalizeHours(hours)),
	)
	if err != nil {
		return nil, queryErr("pool liquidity changes", err)
	}
	defer rows.Close()

	items := make([]LiquiditySnapshot, 0, 32)
	for rows.Next() {
		var item LiquiditySnapshot
		if err := rows.Scan(&item.PoolAddress, &item.SnapshotTime, &item.Liquidity, &item.TVLUSD, &item.Volume24h, &item.APR); err != nil {
			return nil, queryErr("scan liquidity snapshot", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("pool liquidity changes", err)
	}
	return items, nil
}

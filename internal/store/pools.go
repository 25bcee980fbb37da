package store

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Pool is a hyperion_pools row joined with its hyperion_pool_stats row. Stat
// fields are null when the indexer has not produced stats yet.
type Pool struct {
	PoolAddress         string              `json:"pool_address"`
	Token0Address       string              `json:"token0_address"`
	Token1Address       string              `json:"token1_address"`
	Token0Symbol        string              `json:"token0_symbol"`
	Token1Symbol        string              `json:"token1_symbol"`
	FeeTier             int32               `json:"fee_tier"`
	TickSpacing         int32               `json:"tick_spacing"`
	Liquidity           decimal.Decimal     `json:"liquidity"`
	SqrtPriceX96        string              `json:"sqrt_price_x96"`
	Tick                int32               `json:"tick"`
	CreationTimestamp   int64               `json:"creation_timestamp"`
	LastUpdateTimestamp int64               `json:"last_update_timestamp"`
	LastUpdateVersion   int64               `json:"last_update_version"`
	TVLUSD              decimal.NullDecimal `json:"tvl_usd"`
	Volume24h           decimal.NullDecimal `json:"volume_24h"`
	Volume7d            decimal.NullDecimal `json:"volume_7d"`
	Fees24h             decimal.NullDecimal `json:"fees_24h"`
	APR                 decimal.NullDecimal `json:"apr"`
	SwapCount24h        *int64              `json:"swap_count_24h"`
	UniqueTraders24h    *int64              `json:"unique_traders_24h"`
	LastPrice           decimal.NullDecimal `json:"last_price"`
	PriceChange24h      decimal.NullDecimal `json:"price_change_24h"`
}

func (p Pool) Pair() string { return p.Token0Symbol + "/" + p.Token1Symbol }

type PoolStat struct {
	PoolAddress         string          `json:"pool_address"`
	TVLUSD              decimal.Decimal `json:"tvl_usd"`
	Volume24h           decimal.Decimal `json:"volume_24h"`
	Volume7d            decimal.Decimal `json:"volume_7d"`
	Fees24h             decimal.Decimal `json:"fees_24h"`
	Fees7d              decimal.Decimal `json:"fees_7d"`
	APR                 decimal.Decimal `json:"apr"`
	SwapCount24h        int64           `json:"swap_count_24h"`
	SwapCount7d         int64           `json:"swap_count_7d"`
	UniqueTraders24h    int64           `json:"unique_traders_24h"`
	UniqueTraders7d     int64           `json:"unique_traders_7d"`
	LastPrice           decimal.Decimal `json:"last_price"`
	PriceChange24h      decimal.Decimal `json:"price_change_24h"`
	LastUpdateTimestamp int64           `json:"last_update_timestamp"`
}

type Swap struct {
	SwapID            string          `json:"swap_id"`
	TransactionHash   string          `json:"transaction_hash"`
	BlockHeight       int64           `json:"block_height"`
	PoolAddress       string          `json:"pool_address"`
	Sender            string          `json:"sender"`
	Recipient         string          `json:"recipient"`
	TokenIn           string          `json:"token_in"`
	TokenOut          string          `json:"token_out"`
	AmountIn          decimal.Decimal `json:"amount_in"`
	AmountOut         decimal.Decimal `json:"amount_out"`
	SqrtPriceX96After string          `json:"sqrt_price_x96_after"`
	LiquidityAfter    decimal.Decimal `json:"liquidity_after"`
	TickAfter         int32           `json:"tick_after"`
	TxVersion         int64           `json:"tx_version"`
	EventIdx          int64           `json:"event_idx"`
	Timestamp         int64           `json:"timestamp"`
}

const (
	defaultSwapLimit = 100
	maxSwapLimit     = 1000
)

const poolSelect = `
	SELECT p.pool_address, p.token0_address, p.token1_address, p.token0_symbol, p.token1_symbol,
		p.fee_tier, p.tick_spacing, p.liquidity, p.sqrt_price_x96, p.tick,
		p.creation_timestamp, p.last_update_timestamp, p.last_update_version,
		s.tvl_usd, s.volume_24h, s.volume_7d, s.fees_24h, s.apr,
		s.swap_count_24h, s.unique_traders_24h, s.last_price, s.price_change_24h
	FROM hyperion_pools p
	LEFT JOIN hyperion_pool_stats s ON s.pool_address = p.pool_address`

const swapColumns = `swap_id, transaction_hash, block_height, pool_address, sender, recipient, token_in, token_out,
	amount_in, amount_out, sqrt_price_x96_after, liquidity_after, tick_after, tx_version, event_idx, timestamp`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (Pool, error) {
	var item Pool
	err := row.Scan(
		&item.PoolAddress,
		&item.Token0Address,
		&item.Token1Address,
		&item.Token0Symbol,
		&item.Token1Symbol,
		&item.FeeTier,
		&item.TickSpacing,
		&item.Liquidity,
		&item.SqrtPriceX96,
		&item.Tick,
		&item.CreationTimestamp,
		&item.LastUpdateTimestamp,
		&item.LastUpdateVersion,
		&item.TVLUSD,
		&item.Volume24h,
		&item.Volume7d,
		&item.Fees24h,
		&item.APR,
		&item.SwapCount24h,
		&item.UniqueTraders24h,
		&item.LastPrice,
		&item.PriceChange24h,
	)
	return item, err
}

func scanSwap(row rowScanner) (Swap, error) {
	var item Swap
	err := row.Scan(
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
	)
	return item, err
}

// ListPools returns every pool ordered by TVL, pools without stats last.
func (s *Store) ListPools(ctx context.Context) ([]Pool, error) {
	rows, err := s.db.QueryContext(ctx, poolSelect+`
		ORDER BY CAST(s.tvl_usd AS NUMERIC) DESC NULLS LAST, p.pool_address ASC`)
	if err != nil {
		return nil, queryErr("list pools", err)
	}
	defer rows.Close()

	items := make([]Pool, 0, 16)
	for rows.Next() {
		item, err := scanPool(rows)
		if err != nil {
			return nil, queryErr("scan pool", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list pools", err)
	}
	return items, nil
}

func (s *Store) GetPool(ctx context.Context, address string) (Pool, error) {
	item, err := scanPool(s.db.QueryRowContext(ctx, poolSelect+` WHERE p.pool_address = ?`, strings.TrimSpace(address)))
	if err != nil {
		return Pool{}, queryErr("get pool "+address, err)
	}
	return item, nil
}

// ListSwaps returns the newest swaps, optionally for a single pool.
func (s *Store) ListSwaps(ctx context.Context, pool string, limit int) ([]Swap, error) {
	limit = clampLimit(limit, defaultSwapLimit, maxSwapLimit)

	query := `SELECT ` + swapColumns + ` FROM hyperion_swaps`
	args := make([]any, 0, 2)
	if pool = strings.TrimSpace(pool); pool != "" {
		query += ` WHERE pool_address = ?`
		args = append(args, pool)
	}
	query += ` ORDER BY timestamp DESC, swap_id DESC LIMIT ?`
	args = append(args, limit)

	return s.querySwaps(ctx, "list swaps", query, args...)
}

func (s *Store) querySwaps(ctx context.Context, op string, query string, args ...any) ([]Swap, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	items := make([]Swap, 0, 32)
	for rows.Next() {
		item, err := scanSwap(rows)
		if err != nil {
			return nil, queryErr("scan swap", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(op, err)
	}
	return items, nil
}

func (s *Store) ListPoolStats(ctx context.Context) ([]PoolStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pool_address, tvl_usd, volume_24h, volume_7d, fees_24h, fees_7d, apr,
			swap_count_24h, swap_count_7d, unique_traders_24h, unique_traders_7d,
			last_price, price_change_24h, last_update_timestamp
		FROM hyperion_pool_stats
		ORDER BY CAST(tvl_usd AS NUMERIC) DESC, pool_address ASC`)
	if err != nil {
		return nil, queryErr("list pool stats", err)
	}
	defer rows.Close()

	items := make([]PoolStat, 0, 16)
	for rows.Next() {
		var item PoolStat
		if err := rows.Scan(
			&item.PoolAddress,
			&item.TVLUSD,
			&item.Volume24h,
			&item.Volume7d,
			&item.Fees24h,
			&item.Fees7d,
			&item.APR,
			&item.SwapCount24h,
			&item.SwapCount7d,
			&item.UniqueTraders24h,
			&item.UniqueTraders7d,
			&item.LastPrice,
			&item.PriceChange24h,
			&item.LastUpdateTimestamp,
		); err != nil {
			return nil, queryErr("scan pool stat", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list pool stats", err)
	}
	return items, nil
}

func clampLimit(limit, fallback, upper int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > upper {
		return upper
	}
	return limit
}

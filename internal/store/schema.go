package store

import (
	"context"
	"fmt"
)

// Tables read by the API mirror the external indexer's layout. Pool amounts
// are VARCHAR there and are cast to NUMERIC at query time.
var indexerSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		message_obj_addr VARCHAR(300) PRIMARY KEY,
		creator_addr VARCHAR(300) NOT NULL,
		creation_timestamp BIGINT NOT NULL,
		last_update_timestamp BIGINT NOT NULL,
		last_update_event_idx BIGINT NOT NULL,
		content TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		trade_obj_addr VARCHAR(300) PRIMARY KEY,
		trader_addr VARCHAR(300) NOT NULL,
		trade_type SMALLINT NOT NULL,
		token_from VARCHAR(100) NOT NULL,
		token_to VARCHAR(100) NOT NULL,
		amount_from BIGINT NOT NULL,
		amount_to BIGINT NOT NULL,
		price BIGINT NOT NULL,
		status SMALLINT NOT NULL,
		creation_timestamp BIGINT NOT NULL,
		last_update_timestamp BIGINT NOT NULL,
		last_update_event_idx BIGINT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_trader ON trades(trader_addr)`,
	`CREATE TABLE IF NOT EXISTS trader_stats (
		trader_addr VARCHAR(300) PRIMARY KEY,
		creation_timestamp BIGINT NOT NULL,
		last_update_timestamp BIGINT NOT NULL,
		total_trades BIGINT NOT NULL,
		completed_trades BIGINT NOT NULL,
		cancelled_trades BIGINT NOT NULL,
		total_buy_trades BIGINT NOT NULL,
		total_sell_trades BIGINT NOT NULL,
		total_swap_trades BIGINT NOT NULL,
		total_volume BIGINT NOT NULL,
		points BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_stats (
		user_addr VARCHAR(300) PRIMARY KEY,
		creation_timestamp BIGINT NOT NULL,
		last_update_timestamp BIGINT NOT NULL,
		created_messages BIGINT NOT NULL,
		updated_messages BIGINT NOT NULL,
		s1_points BIGINT NOT NULL,
		total_points BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processor_status (
		processor VARCHAR(50) PRIMARY KEY,
		last_success_version BIGINT NOT NULL,
		last_updated TIMESTAMP NOT NULL DEFAULT NOW(),
		last_transaction_timestamp TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hyperion_pools (
		pool_address VARCHAR(300) PRIMARY KEY,
		token0_address VARCHAR(300) NOT NULL,
		token1_address VARCHAR(300) NOT NULL,
		token0_symbol VARCHAR(50) NOT NULL,
		token1_symbol VARCHAR(50) NOT NULL,
		fee_tier INTEGER NOT NULL,
		tick_spacing INTEGER NOT NULL,
		liquidity VARCHAR(100) NOT NULL DEFAULT '0',
		sqrt_price_x96 VARCHAR(100) NOT NULL DEFAULT '0',
		tick INTEGER NOT NULL DEFAULT 0,
		creation_timestamp BIGINT NOT NULL,
		last_update_timestamp BIGINT NOT NULL,
		last_update_version BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hyperion_pool_stats (
		pool_address VARCHAR(300) PRIMARY KEY,
		tvl_usd VARCHAR(100) NOT NULL DEFAULT '0',
		volume_24h VARCHAR(100) NOT NULL DEFAULT '0',
		volume_7d VARCHAR(100) NOT NULL DEFAULT '0',
		fees_24h VARCHAR(100) NOT NULL DEFAULT '0',
		fees_7d VARCHAR(100) NOT NULL DEFAULT '0',
		apr VARCHAR(100) NOT NULL DEFAULT '0',
		swap_count_24h BIGINT NOT NULL DEFAULT 0,
		swap_count_7d BIGINT NOT NULL DEFAULT 0,
		unique_traders_24h BIGINT NOT NULL DEFAULT 0,
		unique_traders_7d BIGINT NOT NULL DEFAULT 0,
		last_price VARCHAR(100) NOT NULL DEFAULT '0',
		price_change_24h VARCHAR(100) NOT NULL DEFAULT '0',
		last_update_timestamp BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hyperion_swaps (
		swap_id VARCHAR(300) PRIMARY KEY,
		transaction_hash VARCHAR(100) NOT NULL DEFAULT '',
		block_height BIGINT NOT NULL DEFAULT 0,
		pool_address VARCHAR(300) NOT NULL,
		sender VARCHAR(300) NOT NULL,
		recipient VARCHAR(300) NOT NULL,
		token_in VARCHAR(300) NOT NULL,
		token_out VARCHAR(300) NOT NULL,
		amount_in VARCHAR(100) NOT NULL,
		amount_out VARCHAR(100) NOT NULL,
		sqrt_price_x96_after VARCHAR(100) NOT NULL DEFAULT '0',
		liquidity_after VARCHAR(100) NOT NULL DEFAULT '0',
		tick_after INTEGER NOT NULL DEFAULT 0,
		tx_version BIGINT NOT NULL,
		event_idx BIGINT NOT NULL,
		timestamp BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hyperion_swaps_pool_ts ON hyperion_swaps(pool_address, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_hyperion_swaps_ts ON hyperion_swaps(timestamp DESC)`,
}

// Tables written by the price tracker.
var trackerSchema = []string{
	`CREATE TABLE IF NOT EXISTS token_price_ticks (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(32) NOT NULL,
		source VARCHAR(32) NOT NULL,
		price NUMERIC(38, 18) NOT NULL,
		conf NUMERIC(38, 18) NOT NULL DEFAULT 0,
		publish_time BIGINT NOT NULL,
		received_at BIGINT NOT NULL,
		UNIQUE (symbol, source, publish_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_token_price_ticks_symbol_time ON token_price_ticks(symbol, publish_time DESC)`,
	`CREATE TABLE IF NOT EXISTS hyperion_pool_stat_history (
		pool_address VARCHAR(300) NOT NULL,
		snapshot_time BIGINT NOT NULL,
		liquidity NUMERIC(78, 0) NOT NULL,
		tvl_usd NUMERIC(38, 8) NOT NULL,
		volume_24h NUMERIC(38, 8) NOT NULL,
		apr NUMERIC(38, 8) NOT NULL,
		PRIMARY KEY (pool_address, snapshot_time)
	)`,
}

// EnsureSchema creates every table this service reads or writes. Production
// deployments normally run it only for the tracker-owned tables; tests and
// local setups run it for all of them.
func (s *Store) EnsureSchema(ctx context.Context, includeIndexerTables bool) error {
	statements := trackerSchema
	if includeIndexerTables {
		statements = append(append([]string{}, indexerSchema...), trackerSchema...)
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

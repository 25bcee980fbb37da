package store

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/apperr"
)

type PriceTickInput struct {
	Symbol      string
	Source      string
	Price       decimal.Decimal
	Conf        decimal.Decimal
	PublishTime int64
	ReceivedAt  int64
}

type PriceTick struct {
	Symbol      string          `json:"symbol"`
	Source      string          `json:"source"`
	Price       decimal.Decimal `json:"price"`
	Conf        decimal.Decimal `json:"conf"`
	PublishTime int64           `json:"publish_time"`
	ReceivedAt  int64           `json:"received_at"`
}

// NormalizeSymbol keeps only A-Z and 0-9, upper-cased.
func NormalizeSymbol(raw string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	var out strings.Builder
	out.Grow(len(trimmed))
	for _, r := range trimmed {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// InsertPriceTick stores a tick and reports whether it was new. Duplicates
// on (symbol, source, publish_time) are ignored.
func (s *Store) InsertPriceTick(ctx context.Context, input PriceTickInput) (bool, error) {
	symbol := NormalizeSymbol(input.Symbol)
	if symbol == "" {
		return false, apperr.Errorf(apperr.KindInvalid, "insert price tick", "symbol is required")
	}
	if !input.Price.IsPositive() {
		return false, apperr.Errorf(apperr.KindInvalid, "insert price tick", "price must be > 0")
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = "coingecko"
	}
	now := s.now().Unix()
	publishTime := input.PublishTime
	if publishTime <= 0 {
		publishTime = now
	}
	receivedAt := input.ReceivedAt
	if receivedAt <= 0 {
		receivedAt = now
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO token_price_ticks (symbol, source, price, conf, publish_time, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, source, publish_time) DO NOTHING`,
		symbol, source, input.Price.String(), input.Conf.String(), publishTime, receivedAt,
	)
	if err != nil {
		return false, queryErr("insert price tick", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

func (s *Store) LatestPriceTick(ctx context.Context, symbol string) (PriceTick, error) {
	var item PriceTick
	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, source, price, conf, publish_time, received_at
		FROM token_price_ticks
		WHERE symbol = ?
		ORDER BY publish_time DESC, id DESC
		LIMIT 1`,
		NormalizeSymbol(symbol),
	).Scan(&item.Symbol, &item.Source, &item.Price, &item.Conf, &item.PublishTime, &item.ReceivedAt)
	if err != nil {
		return PriceTick{}, queryErr("latest price tick "+symbol, err)
	}
	return item, nil
}

// ListPriceTicks returns up to limit ticks published at or after sinceUnix,
// oldest first, so indicator code can consume them in order.
func (s *Store) ListPriceTicks(ctx context.Context, symbol string, sinceUnix int64, limit int) ([]PriceTick, error) {
	limit = clampLimit(limit, 500, 1000)
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, source, price, conf, publish_time, received_at FROM (
			SELECT id, symbol, source, price, conf, publish_time, received_at
			FROM token_price_ticks
			WHERE symbol = ? AND publish_time >= ?
			ORDER BY publish_time DESC, id DESC
			LIMIT ?
		) recent
		ORDER BY publish_time ASC, id ASC`,
		NormalizeSymbol(symbol), sinceUnix, limit,
	)
	if err != nil {
		return nil, queryErr("list price ticks", err)
	}
	defer rows.Close()

	items := make([]PriceTick, 0, limit)
	for rows.Next() {
		var item PriceTick
		if err := rows.Scan(&item.Symbol, &item.Source, &item.Price, &item.Conf, &item.PublishTime, &item.ReceivedAt); err != nil {
			return nil, queryErr("scan price tick", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr("list price ticks", err)
	}
	return items, nil
}

func (s *Store) PruneTicks(ctx context.Context, olderThanUnix int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM token_price_ticks WHERE publish_time < ?`, olderThanUnix)
	if err != nil {
		return 0, queryErr("prune price ticks", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// SnapshotPoolStats copies the current liquidity and stats of every pool
// into hyperion_pool_stat_history at snapshotTime.
func (s *Store) SnapshotPoolStats(ctx context.Context, snapshotTime int64) (int64, error) {
	var inserted int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO hyperion_pool_stat_history (pool_address, snapshot_time, liquidity, tvl_usd, volume_24h, apr)
			SELECT p.pool_address, ?,
				CAST(COALESCE(NULLIF(p.liquidity, ''), '0') AS NUMERIC),
				CAST(COALESCE(NULLIF(s.tvl_usd, ''), '0') AS NUMERIC),
				CAST(COALESCE(NULLIF(s.volume_24h, ''), '0') AS NUMERIC),
				CAST(COALESCE(NULLIF(s.apr, ''), '0') AS NUMERIC)
			FROM hyperion_pools p
			LEFT JOIN hyperion_pool_stats s ON s.pool_address = p.pool_address
			ON CONFLICT (pool_address, snapshot_time) DO NOTHING`,
			snapshotTime,
		)
		if err != nil {
			return err
		}
		inserted, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, queryErr("snapshot pool stats", err)
	}
	return inserted, nil
}

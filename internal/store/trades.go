package store

import (
	"context"
	"fmt"
	"strings"
)

type TradeType int16

const (
	TradeTypeBuy  TradeType = 1
	TradeTypeSell TradeType = 2
	TradeTypeSwap TradeType = 3
)

func (t TradeType) String() string {
	switch t {
	case TradeTypeBuy:
		return "BUY"
	case TradeTypeSell:
		return "SELL"
	case TradeTypeSwap:
		return "SWAP"
	default:
		return "UNKNOWN"
	}
}

type TradeStatus int16

const (
	TradeStatusPending   TradeStatus = 1
	TradeStatusCompleted TradeStatus = 2
	TradeStatusCancelled TradeStatus = 3
)

func (s TradeStatus) String() string {
	switch s {
	case TradeStatusPending:
		return "PENDING"
	case TradeStatusCompleted:
		return "COMPLETED"
	case TradeStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

type Trade struct {
	TradeObjAddr        string      `json:"trade_obj_addr"`
	TraderAddr          string      `json:"trader_addr"`
	TradeType           TradeType   `json:"trade_type"`
	TokenFrom           string      `json:"token_from"`
	TokenTo             string      `json:"token_to"`
	AmountFrom          int64       `json:"amount_from"`
	AmountTo            int64       `json:"amount_to"`
	Price               int64       `json:"price"`
	Status              TradeStatus `json:"status"`
	CreationTimestamp   int64       `json:"creation_timestamp"`
	LastUpdateTimestamp int64       `json:"last_update_timestamp"`
	LastUpdateEventIdx  int64       `json:"last_update_event_idx"`
	Notes               string      `json:"notes"`
}

type TradeQuery struct {
	Page       int
	Limit      int
	SortBy     TradeSort
	Order      Order
	Status     *TradeStatus
	TradeType  *TradeType
	TraderAddr string
}

type TraderStat struct {
	TraderAddr          string `json:"trader_addr"`
	CreationTimestamp   int64  `json:"creation_timestamp"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
	TotalTrades         int64  `json:"total_trades"`
	CompletedTrades     int64  `json:"completed_trades"`
	CancelledTrades     int64  `json:"cancelled_trades"`
	TotalBuyTrades      int64  `json:"total_buy_trades"`
	TotalSellTrades     int64  `json:"total_sell_trades"`
	TotalSwapTrades     int64  `json:"total_swap_trades"`
	TotalVolume         int64  `json:"total_volume"`
	Points              int64  `json:"points"`
}

type TraderStatQuery struct {
	Page   int
	Limit  int
	SortBy TraderStatSort
	Order  Order
}

const tradeColumns = `trade_obj_addr, trader_addr, trade_type, token_from, token_to, amount_from, amount_to,
	price, status, creation_timestamp, last_update_timestamp, last_update_event_idx, notes`

type pagedSQL struct {
	list      string
	count     string
	listArgs  []any
	countArgs []any
	page      int
	limit     int
}

func buildTradeQuery(q TradeQuery) pagedSQL {
	page, limit, offset := normalizePage(q.Page, q.Limit)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 5)
	if q.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, int16(*q.Status))
	}
	if q.TradeType != nil {
		clauses = append(clauses, "trade_type = ?")
		args = append(args, int16(*q.TradeType))
	}
	if addr := strings.TrimSpace(q.TraderAddr); addr != "" {
		clauses = append(clauses, "trader_addr = ?")
		args = append(args, addr)
	}
	where := strings.Join(clauses, " AND ")

	return pagedSQL{
		list: fmt.Sprintf(
			`SELECT %s FROM trades WHERE %s ORDER BY %s %s, trade_obj_addr ASC LIMIT ? OFFSET ?`,
			tradeColumns, where, q.SortBy.Column(), q.Order.sql(),
		),
		count:     fmt.Sprintf(`SELECT COUNT(*) FROM trades WHERE %s`, where),
		listArgs:  append(append([]any{}, args...), limit, offset),
		countArgs: args,
		page:      page,
		limit:     limit,
	}
}

func (s *Store) ListTrades(ctx context.Context, q TradeQuery) (Page[Trade], error) {
	built := buildTradeQuery(q)

	rows, err := s.db.QueryContext(ctx, built.list, built.listArgs...)
	if err != nil {
		return Page[Trade]{}, queryErr("list trades", err)
	}
	defer rows.Close()

	items := make([]Trade, 0, built.limit)
	for rows.Next() {
		var item Trade
		if err := rows.Scan(
			&item.TradeObjAddr,
			&item.TraderAddr,
			&item.TradeType,
			&item.TokenFrom,
			&item.TokenTo,
			&item.AmountFrom,
			&item.AmountTo,
			&item.Price,
			&item.Status,
			&item.CreationTimestamp,
			&item.LastUpdateTimestamp,
			&item.LastUpdateEventIdx,
			&item.Notes,
		); err != nil {
			return Page[Trade]{}, queryErr("scan trade", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[Trade]{}, queryErr("list trades", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, built.count, built.countArgs...).Scan(&total); err != nil {
		return Page[Trade]{}, queryErr("count trades", err)
	}

	return Page[Trade]{Items: items, Total: total, Page: built.page, Limit: built.limit}, nil
}

func (s *Store) GetTrade(ctx context.Context, tradeObjAddr string) (Trade, error) {
	var item Trade
	err := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE trade_obj_addr = ?`,
		strings.TrimSpace(tradeObjAddr),
	).Scan(
		&item.TradeObjAddr,
		&item.TraderAddr,
		&item.TradeType,
		&item.TokenFrom,
		&item.TokenTo,
		&item.AmountFrom,
		&item.AmountTo,
		&item.Price,
		&item.Status,
		&item.CreationTimestamp,
		&item.LastUpdateTimestamp,
		&item.LastUpdateEventIdx,
		&item.Notes,
	)
	if err != nil {
		return Trade{}, queryErr("get trade "+tradeObjAddr, err)
	}
	return item, nil
}

func buildTraderStatQuery(q TraderStatQuery) pagedSQL {
	page, limit, offset := normalizePage(q.Page, q.Limit)
	return pagedSQL{
		list: fmt.Sprintf(`
			SELECT trader_addr, creation_timestamp, last_update_timestamp, total_trades, completed_trades,
				cancelled_trades, total_buy_trades, total_sell_trades, total_swap_trades, total_volume, points
			FROM trader_stats
			ORDER BY %s %s, trader_addr ASC
			LIMIT ? OFFSET ?`,
			q.SortBy.Column(), q.Order.sql(),
		),
		count:    `SELECT COUNT(*) FROM trader_stats`,
		listArgs: []any{limit, offset},
		page:     page,
		limit:    limit,
	}
}

func (s *Store) ListTraderStats(ctx context.Context, q TraderStatQuery) (Page[TraderStat], error) {
	built := buildTraderStatQuery(q)

	rows, err := s.db.QueryContext(ctx, built.list, built.listArgs...)
	if err != nil {
		return Page[TraderStat]{}, queryErr("list trader stats", err)
	}
	defer rows.Close()

	items := make([]TraderStat, 0, built.limit)
	for rows.Next() {
		var item TraderStat
		if err := rows.Scan(
			&item.TraderAddr,
			&item.CreationTimestamp,
			&item.LastUpdateTimestamp,
			&item.TotalTrades,
			&item.CompletedTrades,
			&item.CancelledTrades,
			&item.TotalBuyTrades,
			&item.TotalSellTrades,
			&item.TotalSwapTrades,
			&item.TotalVolume,
			&item.Points,
		); err != nil {
			return Page[TraderStat]{}, queryErr("scan trader stat", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[TraderStat]{}, queryErr("list trader stats", err)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, built.count).Scan(&total); err != nil {
		return Page[TraderStat]{}, queryErr("count trader stats", err)
	}

	return Page[TraderStat]{Items: items, Total: total, Page: built.page, Limit: built.limit}, nil
}

package store

import (
	"strings"

	"github.com/traderadar/backend/internal/apperr"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 200
)

// Order is a closed sort direction. Its SQL keyword comes from a constant,
// never from the request.
type Order uint8

const (
	OrderDesc Order = iota
	OrderAsc
)

func ParseOrder(raw string) (Order, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "DESC":
		return OrderDesc, nil
	case "ASC":
		return OrderAsc, nil
	default:
		return OrderDesc, apperr.Errorf(apperr.KindInvalid, "parse order", "order must be ASC or DESC, got %q", raw)
	}
}

func (o Order) sql() string {
	if o == OrderAsc {
		return "ASC"
	}
	return "DESC"
}

func (o Order) String() string { return o.sql() }

// sortColumns maps a closed enum value to its column identifier. Index 0 is
// the default column for the table.
type sortColumns []string

func (c sortColumns) parse(op string, raw string) (int, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, nil
	}
	for i, column := range c {
		if column == value {
			return i, nil
		}
	}
	return 0, apperr.Errorf(apperr.KindInvalid, op, "unsupported sort column %q (expected %s)", raw, strings.Join(c, "|"))
}

var (
	tradeSortColumns      = sortColumns{"creation_timestamp", "price", "last_update_timestamp"}
	traderStatSortColumns = sortColumns{"points", "total_volume", "total_trades"}
	messageSortColumns    = sortColumns{"creation_timestamp", "last_update_timestamp"}
	userStatSortColumns   = sortColumns{"total_points", "s1_points", "created_messages", "updated_messages", "creation_timestamp"}
)

type TradeSort uint8

const (
	TradeSortCreation TradeSort = iota
	TradeSortPrice
	TradeSortLastUpdate
)

func ParseTradeSort(raw string) (TradeSort, error) {
	idx, err := tradeSortColumns.parse("parse trade sort", raw)
	return TradeSort(idx), err
}

func (s TradeSort) Column() string { return tradeSortColumns[s] }

type TraderStatSort uint8

const (
	TraderStatSortPoints TraderStatSort = iota
	TraderStatSortVolume
	TraderStatSortTrades
)

func ParseTraderStatSort(raw string) (TraderStatSort, error) {
	idx, err := traderStatSortColumns.parse("parse trader stat sort", raw)
	return TraderStatSort(idx), err
}

func (s TraderStatSort) Column() string { return traderStatSortColumns[s] }

type MessageSort uint8

const (
	MessageSortCreation MessageSort = iota
	MessageSortLastUpdate
)

func ParseMessageSort(raw string) (MessageSort, error) {
	idx, err := messageSortColumns.parse("parse message sort", raw)
	return MessageSort(idx), err
}

func (s MessageSort) Column() string { return messageSortColumns[s] }

type UserStatSort uint8

const (
	UserStatSortTotalPoints UserStatSort = iota
	UserStatSortS1Points
	UserStatSortCreatedMessages
	UserStatSortUpdatedMessages
	UserStatSortCreation
)

func ParseUserStatSort(raw string) (UserStatSort, error) {
	idx, err := userStatSortColumns.parse("parse user stat sort", raw)
	return UserStatSort(idx), err
}

func (s UserStatSort) Column() string { return userStatSortColumns[s] }

// Page is one slice of a paginated read plus the unpaginated total. Total
// comes from a separate COUNT(*) so it can drift from Items under writes.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func normalizePage(page, limit int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, (page - 1) * limit
}

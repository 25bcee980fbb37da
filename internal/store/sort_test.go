package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/traderadar/backend/internal/apperr"
)

func TestParseTradeSortRejectsUnknownColumns(t *testing.T) {
	for _, raw := range []string{"notes", "price; DROP TABLE trades", "1", "trader_addr"} {
		_, err := ParseTradeSort(raw)
		if !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("ParseTradeSort(%q) err = %v, want invalid", raw, err)
		}
	}

	cases := map[string]TradeSort{
		"":                        TradeSortCreation,
		"creation_timestamp":      TradeSortCreation,
		"PRICE":                   TradeSortPrice,
		" last_update_timestamp ": TradeSortLastUpdate,
	}
	for raw, want := range cases {
		got, err := ParseTradeSort(raw)
		if err != nil {
			t.Fatalf("ParseTradeSort(%q) err = %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseTradeSort(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseOtherSorts(t *testing.T) {
	if s, err := ParseTraderStatSort("total_volume"); err != nil || s.Column() != "total_volume" {
		t.Errorf("trader stat sort = %v, %v", s, err)
	}
	if _, err := ParseTraderStatSort("price"); err == nil {
		t.Errorf("trader stats must not accept price")
	}
	if s, err := ParseMessageSort("last_update_timestamp"); err != nil || s != MessageSortLastUpdate {
		t.Errorf("message sort = %v, %v", s, err)
	}
	if s, err := ParseUserStatSort("s1_points"); err != nil || s.Column() != "s1_points" {
		t.Errorf("user stat sort = %v, %v", s, err)
	}
	if _, err := ParseUserStatSort("content"); err == nil {
		t.Errorf("user stats must not accept content")
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := ParseOrder("asc"); err != nil || o != OrderAsc {
		t.Errorf("ParseOrder(asc) = %v, %v", o, err)
	}
	if o, err := ParseOrder(""); err != nil || o != OrderDesc {
		t.Errorf("ParseOrder(\"\") = %v, %v", o, err)
	}
	if _, err := ParseOrder("DESC; --"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("ParseOrder(injection) err = %v", err)
	}
}

func TestBuildTradeQuery(t *testing.T) {
	status := TradeStatusPending
	built := buildTradeQuery(TradeQuery{
		Page:       3,
		Limit:      10,
		SortBy:     TradeSortPrice,
		Order:      OrderDesc,
		Status:     &status,
		TraderAddr: " 0xabc ",
	})

	if !strings.Contains(built.list, "ORDER BY price DESC") {
		t.Errorf("list query missing sort: %s", built.list)
	}
	if !strings.Contains(built.list, "status = ? AND trader_addr = ?") {
		t.Errorf("list query missing filters: %s", built.list)
	}
	if !strings.Contains(built.count, "status = ? AND trader_addr = ?") {
		t.Errorf("count query must share the predicate: %s", built.count)
	}
	if strings.Contains(built.count, "LIMIT") {
		t.Errorf("count query must not paginate: %s", built.count)
	}

	wantList := []any{int16(1), "0xabc", 10, 20}
	if len(built.listArgs) != len(wantList) {
		t.Fatalf("listArgs = %v", built.listArgs)
	}
	for i := range wantList {
		if built.listArgs[i] != wantList[i] {
			t.Errorf("listArgs[%d] = %v, want %v", i, built.listArgs[i], wantList[i])
		}
	}
	if len(built.countArgs) != 2 {
		t.Errorf("countArgs = %v", built.countArgs)
	}
}

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, limit                     int
		wantPage, wantLimit, wantOffset int
	}{
		{0, 0, 1, defaultPageLimit, 0},
		{2, 25, 2, 25, 25},
		{1, 10_000, 1, maxPageLimit, 0},
		{-4, 5, 1, 5, 0},
	}
	for _, tc := range cases {
		page, limit, offset := normalizePage(tc.page, tc.limit)
		if page != tc.wantPage || limit != tc.wantLimit || offset != tc.wantOffset {
			t.Errorf("normalizePage(%d, %d) = %d, %d, %d", tc.page, tc.limit, page, limit, offset)
		}
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	got := rebindPostgresPlaceholders(`SELECT '?' , x FROM t WHERE a = ? AND b = 'it''s ?' AND c = ?`)
	want := `SELECT '?' , x FROM t WHERE a = $1 AND b = 'it''s ?' AND c = $2`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
}

package facade

import (
	"context"
	"testing"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/store"
)

type fakeStore struct {
	tradeQuery store.TradeQuery
	trades     []store.Trade
	messages   map[string]store.Message
	version    int64
}

func (f *fakeStore) ListTrades(_ context.Context, q store.TradeQuery) (store.Page[store.Trade], error) {
	f.tradeQuery = q
	return store.Page[store.Trade]{Items: f.trades, Total: int64(len(f.trades)) + 5, Page: 1, Limit: 10}, nil
}

func (f *fakeStore) GetTrade(_ context.Context, addr string) (store.Trade, error) {
	for _, trade := range f.trades {
		if trade.TradeObjAddr == addr {
			return trade, nil
		}
	}
	return store.Trade{}, apperr.Errorf(apperr.KindNotFound, "get trade", "trade %s not found", addr)
}

func (f *fakeStore) ListTraderStats(context.Context, store.TraderStatQuery) (store.Page[store.TraderStat], error) {
	return store.Page[store.TraderStat]{Items: []store.TraderStat{{TraderAddr: "0x1", Points: 7}}, Total: 1}, nil
}

func (f *fakeStore) ListMessages(context.Context, store.MessageQuery) (store.Page[store.Message], error) {
	return store.Page[store.Message]{Items: []store.Message{}, Total: 0}, nil
}

func (f *fakeStore) GetMessage(_ context.Context, addr string) (store.Message, error) {
	message, ok := f.messages[addr]
	if !ok {
		return store.Message{}, apperr.Errorf(apperr.KindNotFound, "get message", "message %s not found", addr)
	}
	return message, nil
}

func (f *fakeStore) ListUserStats(context.Context, store.UserStatQuery) (store.Page[store.UserStat], error) {
	return store.Page[store.UserStat]{Items: []store.UserStat{{UserAddr: "0x2"}}, Total: 3}, nil
}

func (f *fakeStore) GetLastSuccessVersion(context.Context) (int64, error) {
	return f.version, nil
}

func intPtr(v int) *int { return &v }

func TestGetTradesBuildsQuery(t *testing.T) {
	fake := &fakeStore{trades: []store.Trade{{TradeObjAddr: "0xt1", Price: 100}}}
	actions := New(fake)

	result, err := actions.GetTrades(context.Background(), TradeParams{
		ListParams: ListParams{Page: 2, Limit: 5, SortedBy: "price", Order: "asc"},
		Status:     intPtr(1),
		TradeType:  intPtr(3),
		TraderAddr: " 0xabc ",
	})
	if err != nil {
		t.Fatalf("GetTrades() error = %v", err)
	}
	if len(result.Trades) != 1 || result.Total != 6 {
		t.Fatalf("result = %+v", result)
	}
	q := fake.tradeQuery
	if q.Page != 2 || q.Limit != 5 || q.SortBy != store.TradeSortPrice || q.Order != store.OrderAsc {
		t.Fatalf("query = %+v", q)
	}
	if q.Status == nil || *q.Status != store.TradeStatusPending || q.TradeType == nil || *q.TradeType != store.TradeTypeSwap {
		t.Fatalf("filters = %+v", q)
	}
	if q.TraderAddr != "0xabc" {
		t.Fatalf("trader = %q", q.TraderAddr)
	}
}

func TestGetTradesRejectsBadInput(t *testing.T) {
	actions := New(&fakeStore{})
	cases := []TradeParams{
		{ListParams: ListParams{SortedBy: "amount_from; DROP TABLE trades"}},
		{ListParams: ListParams{Order: "sideways"}},
		{Status: intPtr(9)},
		{TradeType: intPtr(0)},
	}
	for _, tc := range cases {
		if _, err := actions.GetTrades(context.Background(), tc); !apperr.IsInvalid(err) {
			t.Fatalf("GetTrades(%+v) error = %v, want invalid", tc, err)
		}
	}
}

func TestPointReads(t *testing.T) {
	fake := &fakeStore{
		trades:   []store.Trade{{TradeObjAddr: "0xt1"}},
		messages: map[string]store.Message{"0xm1": {MessageObjAddr: "0xm1", Content: "gm"}},
		version:  42,
	}
	actions := New(fake)
	ctx := context.Background()

	trade, err := actions.GetTrade(ctx, "0xt1")
	if err != nil || trade.Trade.TradeObjAddr != "0xt1" {
		t.Fatalf("GetTrade() = %+v, err = %v", trade, err)
	}
	if _, err := actions.GetTrade(ctx, "0xnope"); !apperr.IsNotFound(err) {
		t.Fatalf("GetTrade(missing) error = %v", err)
	}
	if _, err := actions.GetTrade(ctx, ""); !apperr.IsInvalid(err) {
		t.Fatalf("GetTrade(blank) error = %v", err)
	}

	message, err := actions.GetMessage(ctx, "0xm1")
	if err != nil || message.Message.Content != "gm" {
		t.Fatalf("GetMessage() = %+v, err = %v", message, err)
	}

	version, err := actions.GetLastVersion(ctx)
	if err != nil || version != 42 {
		t.Fatalf("GetLastVersion() = %d, err = %v", version, err)
	}
}

func TestListShapes(t *testing.T) {
	actions := New(&fakeStore{})
	ctx := context.Background()

	stats, err := actions.GetTraderStats(ctx, ListParams{SortedBy: "total_volume"})
	if err != nil || len(stats.TraderStats) != 1 || stats.Total != 1 {
		t.Fatalf("GetTraderStats() = %+v, err = %v", stats, err)
	}
	if _, err := actions.GetTraderStats(ctx, ListParams{SortedBy: "price"}); !apperr.IsInvalid(err) {
		t.Fatalf("trader stats bad sort error = %v", err)
	}

	messages, err := actions.GetMessages(ctx, ListParams{})
	if err != nil || messages.Messages == nil || messages.Total != 0 {
		t.Fatalf("GetMessages() = %+v, err = %v", messages, err)
	}

	users, err := actions.GetUserStats(ctx, ListParams{SortedBy: "s1_points", Order: "DESC"})
	if err != nil || users.Total != 3 {
		t.Fatalf("GetUserStats() = %+v, err = %v", users, err)
	}
}

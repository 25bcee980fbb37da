// Package facade exposes the read-side operations the dashboard calls as
// server actions. Each call takes loosely typed parameters, validates them
// into a store query and shapes the result the way the dashboard expects.
package facade

import (
	"context"
	"strings"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/store"
)

// Store is the slice of the query layer the facade reads from.
type Store interface {
	ListTrades(ctx context.Context, q store.TradeQuery) (store.Page[store.Trade], error)
	GetTrade(ctx context.Context, tradeObjAddr string) (store.Trade, error)
	ListTraderStats(ctx context.Context, q store.TraderStatQuery) (store.Page[store.TraderStat], error)
	ListMessages(ctx context.Context, q store.MessageQuery) (store.Page[store.Message], error)
	GetMessage(ctx context.Context, messageObjAddr string) (store.Message, error)
	ListUserStats(ctx context.Context, q store.UserStatQuery) (store.Page[store.UserStat], error)
	GetLastSuccessVersion(ctx context.Context) (int64, error)
}

type Actions struct {
	store Store
}

func New(s Store) *Actions {
	return &Actions{store: s}
}

// ListParams are the pagination arguments shared by every list action.
type ListParams struct {
	Page     int
	Limit    int
	SortedBy string
	Order    string
}

type TradeParams struct {
	ListParams
	Status     *int
	TradeType  *int
	TraderAddr string
}

type TradesResult struct {
	Trades []store.Trade `json:"trades"`
	Total  int64         `json:"total"`
}

type TradeResult struct {
	Trade store.Trade `json:"trade"`
}

type TraderStatsResult struct {
	TraderStats []store.TraderStat `json:"traderStats"`
	Total       int64              `json:"total"`
}

type MessagesResult struct {
	Messages []store.Message `json:"messages"`
	Total    int64           `json:"total"`
}

type MessageResult struct {
	Message store.Message `json:"message"`
}

type UserStatsResult struct {
	UserStats []store.UserStat `json:"userStats"`
	Total     int64            `json:"total"`
}

func (a *Actions) GetTrades(ctx context.Context, p TradeParams) (TradesResult, error) {
	sortBy, err := store.ParseTradeSort(p.SortedBy)
	if err != nil {
		return TradesResult{}, err
	}
	order, err := store.ParseOrder(p.Order)
	if err != nil {
		return TradesResult{}, err
	}
	q := store.TradeQuery{
		Page:       p.Page,
		Limit:      p.Limit,
		SortBy:     sortBy,
		Order:      order,
		TraderAddr: strings.TrimSpace(p.TraderAddr),
	}
	if p.Status != nil {
		status := store.TradeStatus(*p.Status)
		if status < store.TradeStatusPending || status > store.TradeStatusCancelled {
			return TradesResult{}, apperr.Errorf(apperr.KindInvalid, "get trades", "status must be 1..3, got %d", *p.Status)
		}
		q.Status = &status
	}
	if p.TradeType != nil {
		tradeType := store.TradeType(*p.TradeType)
		if tradeType < store.TradeTypeBuy || tradeType > store.TradeTypeSwap {
			return TradesResult{}, apperr.Errorf(apperr.KindInvalid, "get trades", "trade type must be 1..3, got %d", *p.TradeType)
		}
		q.TradeType = &tradeType
	}

	page, err := a.store.ListTrades(ctx, q)
	if err != nil {
		return TradesResult{}, err
	}
	return TradesResult{Trades: page.Items, Total: page.Total}, nil
}

func (a *Actions) GetTrade(ctx context.Context, tradeObjAddr string) (TradeResult, error) {
	tradeObjAddr = strings.TrimSpace(tradeObjAddr)
	if tradeObjAddr == "" {
		return TradeResult{}, apperr.Errorf(apperr.KindInvalid, "get trade", "trade object address is required")
	}
	trade, err := a.store.GetTrade(ctx, tradeObjAddr)
	if err != nil {
		return TradeResult{}, err
	}
	return TradeResult{Trade: trade}, nil
}

func (a *Actions) GetTraderStats(ctx context.Context, p ListParams) (TraderStatsResult, error) {
	sortBy, err := store.ParseTraderStatSort(p.SortedBy)
	if err != nil {
		return TraderStatsResult{}, err
	}
	order, err := store.ParseOrder(p.Order)
	if err != nil {
		return TraderStatsResult{}, err
	}
	page, err := a.store.ListTraderStats(ctx, store.TraderStatQuery{Page: p.Page, Limit: p.Limit, SortBy: sortBy, Order: order})
	if err != nil {
		return TraderStatsResult{}, err
	}
	return TraderStatsResult{TraderStats: page.Items, Total: page.Total}, nil
}

func (a *Actions) GetMessages(ctx context.Context, p ListParams) (MessagesResult, error) {
	sortBy, err := store.ParseMessageSort(p.SortedBy)
	if err != nil {
		return MessagesResult{}, err
	}
	order, err := store.ParseOrder(p.Order)
	if err != nil {
		return MessagesResult{}, err
	}
	page, err := a.store.ListMessages(ctx, store.MessageQuery{Page: p.Page, Limit: p.Limit, SortBy: sortBy, Order: order})
	if err != nil {
		return MessagesResult{}, err
	}
	return MessagesResult{Messages: page.Items, Total: page.Total}, nil
}

func (a *Actions) GetMessage(ctx context.Context, messageObjAddr string) (MessageResult, error) {
	messageObjAddr = strings.TrimSpace(messageObjAddr)
	if messageObjAddr == "" {
		return MessageResult{}, apperr.Errorf(apperr.KindInvalid, "get message", "message object address is required")
	}
	message, err := a.store.GetMessage(ctx, messageObjAddr)
	if err != nil {
		return MessageResult{}, err
	}
	return MessageResult{Message: message}, nil
}

func (a *Actions) GetUserStats(ctx context.Context, p ListParams) (UserStatsResult, error) {
	sortBy, err := store.ParseUserStatSort(p.SortedBy)
	if err != nil {
		return UserStatsResult{}, err
	}
	order, err := store.ParseOrder(p.Order)
	if err != nil {
		return UserStatsResult{}, err
	}
	page, err := a.store.ListUserStats(ctx, store.UserStatQuery{Page: p.Page, Limit: p.Limit, SortBy: sortBy, Order: order})
	if err != nil {
		return UserStatsResult{}, err
	}
	return UserStatsResult{UserStats: page.Items, Total: page.Total}, nil
}

// GetLastVersion is the last ledger version the indexer processed.
func (a *Actions) GetLastVersion(ctx context.Context) (int64, error) {
	return a.store.GetLastSuccessVersion(ctx)
}

// Package entry builds entry-function payloads for the trade_radar Move
// module. Payloads are handed to a wallet for signing; nothing here submits
// transactions.
package entry

import (
	"strconv"
	"strings"

	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/store"
)

const moduleName = "trade_radar"

type Payload struct {
	Function          string   `json:"function"`
	TypeArguments     []string `json:"typeArguments"`
	FunctionArguments []any    `json:"functionArguments"`
}

type CreateTradeArgs struct {
	TradeType  int    `json:"tradeType"`
	TokenFrom  string `json:"tokenFrom"`
	TokenTo    string `json:"tokenTo"`
	AmountFrom uint64 `json:"amountFrom"`
	AmountTo   uint64 `json:"amountTo"`
	Price      uint64 `json:"price"`
	Notes      string `json:"notes"`
}

type UpdateTradeArgs struct {
	TradeObjAddr string `json:"tradeObjAddr"`
	AmountFrom   uint64 `json:"amountFrom"`
	AmountTo     uint64 `json:"amountTo"`
	Price        uint64 `json:"price"`
	Notes        string `json:"notes"`
}

type TradeRefArgs struct {
	TradeObjAddr string `json:"tradeObjAddr"`
}

type Builder struct {
	module string
}

func NewBuilder(moduleAddress string) (*Builder, error) {
	if strings.TrimSpace(moduleAddress) == "" {
		return nil, apperr.Errorf(apperr.KindConfig, "entry builder", "MODULE_ADDRESS is required")
	}
	address, err := NormalizeAddress(moduleAddress)
	if err != nil {
		return nil, apperr.E(apperr.KindConfig, "entry builder", err)
	}
	return &Builder{module: address}, nil
}

func (b *Builder) ModuleAddress() string { return b.module }

func (b *Builder) payload(function string, args ...any) Payload {
	return Payload{
		Function:          b.module + "::" + moduleName + "::" + function,
		TypeArguments:     []string{},
		FunctionArguments: args,
	}
}

func (b *Builder) CreateTrade(args CreateTradeArgs) (Payload, error) {
	const op = "create trade payload"
	tradeType := store.TradeType(args.TradeType)
	if tradeType < store.TradeTypeBuy || tradeType > store.TradeTypeSwap {
		return Payload{}, apperr.Errorf(apperr.KindInvalid, op, "trade type must be 1 (BUY), 2 (SELL) or 3 (SWAP), got %d", args.TradeType)
	}
	tokenFrom := strings.TrimSpace(args.TokenFrom)
	tokenTo := strings.TrimSpace(args.TokenTo)
	if tokenFrom == "" || tokenTo == "" {
		return Payload{}, apperr.Errorf(apperr.KindInvalid, op, "tokenFrom and tokenTo are required")
	}
	return b.payload("create_trade",
		args.TradeType,
		tokenFrom,
		tokenTo,
		u64(args.AmountFrom),
		u64(args.AmountTo),
		u64(args.Price),
		args.Notes,
	), nil
}

func (b *Builder) UpdateTrade(args UpdateTradeArgs) (Payload, error) {
	tradeAddr, err := tradeAddress("update trade payload", args.TradeObjAddr)
	if err != nil {
		return Payload{}, err
	}
	return b.payload("update_trade",
		tradeAddr,
		u64(args.AmountFrom),
		u64(args.AmountTo),
		u64(args.Price),
		args.Notes,
	), nil
}

func (b *Builder) CompleteTrade(args TradeRefArgs) (Payload, error) {
	tradeAddr, err := tradeAddress("complete trade payload", args.TradeObjAddr)
	if err != nil {
		return Payload{}, err
	}
	return b.payload("complete_trade", tradeAddr), nil
}

func (b *Builder) CancelTrade(args TradeRefArgs) (Payload, error) {
	tradeAddr, err := tradeAddress("cancel trade payload", args.TradeObjAddr)
	if err != nil {
		return Payload{}, err
	}
	return b.payload("cancel_trade", tradeAddr), nil
}

func tradeAddress(op, raw string) (string, error) {
	address, err := NormalizeAddress(raw)
	if err != nil {
		return "", apperr.E(apperr.KindInvalid, op, err)
	}
	return address, nil
}

// u64 values travel as decimal strings so they survive JSON number
// precision limits in wallets.
func u64(value uint64) string {
	return strconv.FormatUint(value, 10)
}

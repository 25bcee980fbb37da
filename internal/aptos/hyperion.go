package aptos

import (
	"context"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/apperr"
	"github.com/traderadar/backend/internal/upstream"
)

const (
	fungibleStoreType    = "0x1::fungible_asset::FungibleStore"
	fungibleMetadataType = "0x1::fungible_asset::Metadata"
	storeBalanceFunction = "0x1::fungible_asset::balance"
	feeRateDenominator   = 1_000_000
)

type objectRef struct {
	Inner string `json:"inner"`
}

type rawPool struct {
	TokenALiquidity objectRef       `json:"token_a_liquidity"`
	TokenBLiquidity objectRef       `json:"token_b_liquidity"`
	FeeRate         upstream.Number `json:"fee_rate"`
	TickSpacing     upstream.Number `json:"tick_spacing"`
	Liquidity       string          `json:"liquidity"`
	SqrtPrice       string          `json:"sqrt_price"`
	Tick            struct {
		Bits upstream.Number `json:"bits"`
	} `json:"tick"`
}

// PoolState is the on-chain LiquidityPoolV3 resource of a Hyperion pool.
type PoolState struct {
	Address     string `json:"address"`
	TokenAStore string `json:"tokenAStore"`
	TokenBStore string `json:"tokenBStore"`
	FeeRate     uint64 `json:"feeRate"`
	TickSpacing uint32 `json:"tickSpacing"`
	Liquidity   string `json:"liquidity"`
	SqrtPrice   string `json:"sqrtPrice"`
	Tick        uint32 `json:"tick"`
}

type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type PoolTokens struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
}

// Reserves are raw store balances in the tokens' smallest units.
type Reserves struct {
	Token0 decimal.Decimal `json:"token0"`
	Token1 decimal.Decimal `json:"token1"`
}

type Performance struct {
	CurrentPrice float64   `json:"currentPrice"`
	Liquidity    *Reserves `json:"liquidity"`
	Fee          float64   `json:"fee"`
	TVL          float64   `json:"tvl"`
	EstimatedAPR float64   `json:"estimatedAPR"`
}

// HyperionReader reads Hyperion CLMM pools straight from chain state.
type HyperionReader struct {
	client     *Client
	moduleAddr string
	knownPools []string
}

func NewHyperionReader(client *Client, moduleAddr string, knownPools []string) *HyperionReader {
	pools := make([]string, 0, len(knownPools))
	seen := make(map[string]struct{}, len(knownPools))
	for _, pool := range knownPools {
		pool = strings.ToLower(strings.TrimSpace(pool))
		if pool == "" {
			continue
		}
		if _, ok := seen[pool]; ok {
			continue
		}
		seen[pool] = struct{}{}
		pools = append(pools, pool)
	}
	return &HyperionReader{
		client:     client,
		moduleAddr: strings.ToLower(strings.TrimSpace(moduleAddr)),
		knownPools: pools,
	}
}

func (r *HyperionReader) poolType() string {
	return r.moduleAddr + "::pool_v3::LiquidityPoolV3"
}

// PoolAddresses lists the configured pools. Pools are not enumerable from
// chain state without an indexer.
func (r *HyperionReader) PoolAddresses() []string {
	return append([]string(nil), r.knownPools...)
}

func (r *HyperionReader) LedgerInfo(ctx context.Context) (LedgerInfo, error) {
	return r.client.LedgerInfo(ctx)
}

func (r *HyperionReader) Pool(ctx context.Context, address string) (PoolState, error) {
	var raw rawPool
	if err := r.client.Resource(ctx, address, r.poolType(), &raw); err != nil {
		if apperr.IsNotFound(err) {
			return PoolState{}, apperr.E(apperr.KindNotFound, "hyperion pool "+address, err)
		}
		return PoolState{}, err
	}
	return PoolState{
		Address:     address,
		TokenAStore: raw.TokenALiquidity.Inner,
		TokenBStore: raw.TokenBLiquidity.Inner,
		FeeRate:     uint64(raw.FeeRate.Float64()),
		TickSpacing: uint32(raw.TickSpacing.Float64()),
		Liquidity:   raw.Liquidity,
		SqrtPrice:   raw.SqrtPrice,
		Tick:        uint32(raw.Tick.Bits.Float64()),
	}, nil
}

type rawStore struct {
	Metadata objectRef `json:"metadata"`
	Balance  string    `json:"balance"`
}

// PoolTokens resolves the metadata addresses of both pool tokens through
// the pool's fungible stores.
func (r *HyperionReader) PoolTokens(ctx context.Context, address string) (PoolTokens, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return PoolTokens{}, err
	}
	var storeA, storeB rawStore
	if err := r.client.Resource(ctx, pool.TokenAStore, fungibleStoreType, &storeA); err != nil {
		return PoolTokens{}, err
	}
	if err := r.client.Resource(ctx, pool.TokenBStore, fungibleStoreType, &storeB); err != nil {
		return PoolTokens{}, err
	}
	return PoolTokens{Token0: storeA.Metadata.Inner, Token1: storeB.Metadata.Inner}, nil
}

type rawMetadata struct {
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	Decimals upstream.Number `json:"decimals"`
}

func (r *HyperionReader) TokenMetadata(ctx context.Context, address string) (TokenMetadata, error) {
	var raw rawMetadata
	if err := r.client.Resource(ctx, address, fungibleMetadataType, &raw); err != nil {
		return TokenMetadata{}, err
	}
	meta := TokenMetadata{
		Address:  address,
		Name:     raw.Name,
		Symbol:   raw.Symbol,
		Decimals: int(raw.Decimals.Float64()),
	}
	if meta.Symbol == "" {
		meta.Symbol = "UNKNOWN"
	}
	return meta, nil
}

// PoolReserves reads both store balances with the framework balance view.
func (r *HyperionReader) PoolReserves(ctx context.Context, address string) (Reserves, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return Reserves{}, err
	}
	return r.reserves(ctx, pool)
}

func (r *HyperionReader) reserves(ctx context.Context, pool PoolState) (Reserves, error) {
	token0, err := r.storeBalance(ctx, pool.TokenAStore)
	if err != nil {
		return Reserves{}, err
	}
	token1, err := r.storeBalance(ctx, pool.TokenBStore)
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{Token0: token0, Token1: token1}, nil
}

func (r *HyperionReader) storeBalance(ctx context.Context, store string) (decimal.Decimal, error) {
	op := "store balance " + store
	values, err := r.client.View(ctx, storeBalanceFunction, []string{fungibleStoreType}, []any{store})
	if err != nil {
		return decimal.Zero, err
	}
	text, err := viewString(values, 0)
	if err != nil {
		return decimal.Zero, apperr.E(apperr.KindUpstream, op, err)
	}
	balance, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, apperr.E(apperr.KindUpstream, op, err)
	}
	return balance, nil
}

// CurrentPrice is token1 per token0: (sqrt_price / 2^64)^2 scaled by the
// decimals difference.
func (r *HyperionReader) CurrentPrice(ctx context.Context, address string) (float64, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return 0, err
	}
	meta0, meta1, err := r.poolMetadata(ctx, pool)
	if err != nil {
		return 0, err
	}
	return priceFromSqrtX64(pool.SqrtPrice, meta0.Decimals, meta1.Decimals)
}

func (r *HyperionReader) poolMetadata(ctx context.Context, pool PoolState) (TokenMetadata, TokenMetadata, error) {
	var storeA, storeB rawStore
	if err := r.client.Resource(ctx, pool.TokenAStore, fungibleStoreType, &storeA); err != nil {
		return TokenMetadata{}, TokenMetadata{}, err
	}
	if err := r.client.Resource(ctx, pool.TokenBStore, fungibleStoreType, &storeB); err != nil {
		return TokenMetadata{}, TokenMetadata{}, err
	}
	meta0, err := r.TokenMetadata(ctx, storeA.Metadata.Inner)
	if err != nil {
		return TokenMetadata{}, TokenMetadata{}, err
	}
	meta1, err := r.TokenMetadata(ctx, storeB.Metadata.Inner)
	if err != nil {
		return TokenMetadata{}, TokenMetadata{}, err
	}
	return meta0, meta1, nil
}

func priceFromSqrtX64(raw string, decimals0, decimals1 int) (float64, error) {
	sqrt, ok := new(big.Float).SetPrec(256).SetString(strings.TrimSpace(raw))
	if !ok {
		return 0, apperr.Errorf(apperr.KindUpstream, "pool price", "invalid sqrt price %q", raw)
	}
	q64 := new(big.Float).SetPrec(256).SetMantExp(big.NewFloat(1), 64)
	ratio := new(big.Float).SetPrec(256).Quo(sqrt, q64)
	price, _ := new(big.Float).SetPrec(256).Mul(ratio, ratio).Float64()
	return price * math.Pow10(decimals0-decimals1), nil
}

func (r *HyperionReader) PoolFee(ctx context.Context, address string) (float64, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return 0, err
	}
	return float64(pool.FeeRate) / feeRateDenominator, nil
}

// TVL values both reserves at the given USD prices, scaling each balance by
// its token's decimals.
func (r *HyperionReader) TVL(ctx context.Context, address string, price0, price1 float64) (float64, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return 0, err
	}
	meta0, meta1, err := r.poolMetadata(ctx, pool)
	if err != nil {
		return 0, err
	}
	reserves, err := r.reserves(ctx, pool)
	if err != nil {
		return 0, err
	}
	return reserveValue(reserves.Token0, meta0.Decimals, price0) + reserveValue(reserves.Token1, meta1.Decimals, price1), nil
}

func reserveValue(balance decimal.Decimal, decimals int, price float64) float64 {
	return balance.Shift(int32(-decimals)).InexactFloat64() * price
}

// Performance combines price, reserves and fee into an APR estimate for the
// given 24h volume and token prices.
func (r *HyperionReader) Performance(ctx context.Context, address string, volume24h, price0, price1 float64) (Performance, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return Performance{}, err
	}
	meta0, meta1, err := r.poolMetadata(ctx, pool)
	if err != nil {
		return Performance{}, err
	}
	price, err := priceFromSqrtX64(pool.SqrtPrice, meta0.Decimals, meta1.Decimals)
	if err != nil {
		return Performance{}, err
	}
	out := Performance{
		CurrentPrice: price,
		Fee:          float64(pool.FeeRate) / feeRateDenominator,
	}
	reserves, err := r.reserves(ctx, pool)
	if err != nil {
		return Performance{}, err
	}
	out.Liquidity = &reserves
	out.TVL = reserveValue(reserves.Token0, meta0.Decimals, price0) + reserveValue(reserves.Token1, meta1.Decimals, price1)
	out.EstimatedAPR = analytics.APR(volume24h, out.TVL, out.Fee)
	return out, nil
}

// Details is the full on-chain view of one pool.
type Details struct {
	Address      string         `json:"address"`
	PoolData     PoolState      `json:"poolData"`
	Token0       *TokenMetadata `json:"token0"`
	Token1       *TokenMetadata `json:"token1"`
	Liquidity    *Reserves      `json:"liquidity"`
	CurrentPrice float64        `json:"currentPrice"`
	Fee          float64        `json:"fee"`
}

// Details reads pool state, token metadata, reserves and price in one pass.
// Only a missing pool is an error; a failing token or reserve lookup leaves
// that field nil.
func (r *HyperionReader) Details(ctx context.Context, address string) (Details, error) {
	pool, err := r.Pool(ctx, address)
	if err != nil {
		return Details{}, err
	}
	out := Details{
		Address:  address,
		PoolData: pool,
		Fee:      float64(pool.FeeRate) / feeRateDenominator,
	}
	if meta0, meta1, err := r.poolMetadata(ctx, pool); err == nil {
		out.Token0, out.Token1 = &meta0, &meta1
		if price, err := priceFromSqrtX64(pool.SqrtPrice, meta0.Decimals, meta1.Decimals); err == nil {
			out.CurrentPrice = price
		}
	}
	if reserves, err := r.reserves(ctx, pool); err == nil {
		out.Liquidity = &reserves
	}
	return out, nil
}

// TVLOf values a Details result. Zero when metadata or reserves are missing.
func (d Details) TVLOf(price0, price1 float64) float64 {
	if d.Token0 == nil || d.Token1 == nil || d.Liquidity == nil {
		return 0
	}
	return reserveValue(d.Liquidity.Token0, d.Token0.Decimals, price0) + reserveValue(d.Liquidity.Token1, d.Token1.Decimals, price1)
}

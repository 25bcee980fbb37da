package analytics

import (
	"math"
	"sort"
)

// PairInput carries the numeric fields of a perpetuals pair.
type PairInput struct {
	Symbol         string
	BaseAsset      string
	QuoteAsset     string
	MarkPrice      float64
	IndexPrice     float64
	Volume24h      float64
	PriceChange24h float64
	FundingRate    float64
}

type PairMetrics struct {
	Symbol                string  `json:"symbol"`
	BaseAsset             string  `json:"baseAsset"`
	QuoteAsset            string  `json:"quoteAsset"`
	MarkPrice             float64 `json:"markPrice"`
	IndexPrice            float64 `json:"indexPrice"`
	Volume24h             float64 `json:"volume24h"`
	PriceChange24h        float64 `json:"priceChange24h"`
	FundingRate           float64 `json:"fundingRate"`
	FundingRatePercentage float64 `json:"fundingRatePercentage"`
	IsLongFavorable       bool    `json:"isLongFavorable"`
}

type PairVolume struct {
	Symbol    string  `json:"symbol"`
	Volume24h float64 `json:"volume24h"`
}

type PairMove struct {
	Symbol         string  `json:"symbol"`
	PriceChange24h float64 `json:"priceChange24h"`
}

type PairsSummary struct {
	TotalVolume24h    float64      `json:"totalVolume24h"`
	AvgFundingRate    float64      `json:"avgFundingRate"`
	TopPairsByVolume  []PairVolume `json:"topPairsByVolume"`
	MostVolatilePairs []PairMove   `json:"mostVolatilePairs"`
}

// NewPairMetrics adds funding rate views. Negative funding favours longs.
func NewPairMetrics(in PairInput) PairMetrics {
	return PairMetrics{
		Symbol:                in.Symbol,
		BaseAsset:             in.BaseAsset,
		QuoteAsset:            in.QuoteAsset,
		MarkPrice:             in.MarkPrice,
		IndexPrice:            in.IndexPrice,
		Volume24h:             in.Volume24h,
		PriceChange24h:        in.PriceChange24h,
		FundingRate:           in.FundingRate,
		FundingRatePercentage: math.Round(in.FundingRate*100*10_000) / 10_000,
		IsLongFavorable:       in.FundingRate < 0,
	}
}

func SummarizePairs(pairs []PairMetrics) PairsSummary {
	out := PairsSummary{TopPairsByVolume: []PairVolume{}, MostVolatilePairs: []PairMove{}}
	if len(pairs) == 0 {
		return out
	}
	var funding float64
	for _, pair := range pairs {
		out.TotalVolume24h += pair.Volume24h
		funding += pair.FundingRate
	}
	out.AvgFundingRate = funding / float64(len(pairs))

	byVolume := append([]PairMetrics(nil), pairs...)
	sort.SliceStable(byVolume, func(i, j int) bool { return byVolume[i].Volume24h > byVolume[j].Volume24h })
	for _, pair := range byVolume[:min(5, len(byVolume))] {
		out.TopPairsByVolume = append(out.TopPairsByVolume, PairVolume{Symbol: pair.Symbol, Volume24h: pair.Volume24h})
	}

	byMove := append([]PairMetrics(nil), pairs...)
	sort.SliceStable(byMove, func(i, j int) bool {
		return math.Abs(byMove[i].PriceChange24h) > math.Abs(byMove[j].PriceChange24h)
	})
	for _, pair := range byMove[:min(5, len(byMove))] {
		out.MostVolatilePairs = append(out.MostVolatilePairs, PairMove{Symbol: pair.Symbol, PriceChange24h: pair.PriceChange24h})
	}
	return out
}

// PositionInput carries the numeric fields of an open perpetuals position.
type PositionInput struct {
	User             string
	Pair             string
	Size             float64
	Collateral       float64
	EntryPrice       float64
	LiquidationPrice float64
	UnrealizedPnl    float64
	Leverage         float64
	IsLong           bool
}

type PositionMetrics struct {
	User                  string   `json:"user"`
	Pair                  string   `json:"pair"`
	Size                  float64  `json:"size"`
	Collateral            float64  `json:"collateral"`
	EntryPrice            float64  `json:"entryPrice"`
	LiquidationPrice      float64  `json:"liquidationPrice"`
	UnrealizedPnl         float64  `json:"unrealizedPnl"`
	PnlPercentage         float64  `json:"pnlPercentage"`
	Leverage              float64  `json:"leverage"`
	IsLong                bool     `json:"isLong"`
	Direction             string   `json:"direction"`
	DistanceToLiquidation float64  `json:"distanceToLiquidation"`
	RiskLevel             Severity `json:"riskLevel"`
}

// NewPositionMetrics grades liquidation risk by the distance from entry to
// liquidation price: under 5% high, under 15% medium.
func NewPositionMetrics(in PositionInput) PositionMetrics {
	out := PositionMetrics{
		User:             in.User,
		Pair:             in.Pair,
		Size:             in.Size,
		Collateral:       in.Collateral,
		EntryPrice:       in.EntryPrice,
		LiquidationPrice: in.LiquidationPrice,
		UnrealizedPnl:    in.UnrealizedPnl,
		Leverage:         in.Leverage,
		IsLong:           in.IsLong,
		Direction:        "SHORT",
	}
	if in.IsLong {
		out.Direction = "LONG"
	}
	if in.Collateral > 0 {
		out.PnlPercentage = in.UnrealizedPnl / in.Collateral * 100
	}
	if in.EntryPrice > 0 {
		out.DistanceToLiquidation = math.Abs((in.LiquidationPrice-in.EntryPrice)/in.EntryPrice) * 100
	}
	switch {
	case out.DistanceToLiquidation < 5:
		out.RiskLevel = SeverityHigh
	case out.DistanceToLiquidation < 15:
		out.RiskLevel = SeverityMedium
	default:
		out.RiskLevel = SeverityLow
	}
	return out
}

type PositionTotals struct {
	TotalCollateral     float64 `json:"totalCollateral"`
	TotalUnrealizedPnl  float64 `json:"totalUnrealizedPnl"`
	TotalPnlPercentage  float64 `json:"totalPnlPercentage"`
	LongPositions       int     `json:"longPositions"`
	ShortPositions      int     `json:"shortPositions"`
	HighRiskPositions   int     `json:"highRiskPositions"`
	ProfitablePositions int     `json:"profitablePositions"`
	LosingPositions     int     `json:"losingPositions"`
	WinRate             float64 `json:"winRate"`
}

type PairExposure struct {
	Count           int     `json:"count"`
	TotalCollateral float64 `json:"totalCollateral"`
	TotalPnl        float64 `json:"totalPnl"`
	Long            int     `json:"long"`
	Short           int     `json:"short"`
}

type PositionSummary struct {
	ByPair map[string]*PairExposure `json:"byPair"`
	ByRisk map[Severity]int         `json:"byRisk"`
}

func SummarizePositions(positions []PositionMetrics) (PositionTotals, PositionSummary) {
	var totals PositionTotals
	summary := PositionSummary{
		ByPair: make(map[string]*PairExposure),
		ByRisk: map[Severity]int{SeverityHigh: 0, SeverityMedium: 0, SeverityLow: 0},
	}
	for _, pos := range positions {
		totals.TotalCollateral += pos.Collateral
		totals.TotalUnrealizedPnl += pos.UnrealizedPnl
		if pos.IsLong {
			totals.LongPositions++
		} else {
			totals.ShortPositions++
		}
		switch {
		case pos.UnrealizedPnl > 0:
			totals.ProfitablePositions++
		case pos.UnrealizedPnl < 0:
			totals.LosingPositions++
		}
		summary.ByRisk[pos.RiskLevel]++

		exposure, ok := summary.ByPair[pos.Pair]
		if !ok {
			exposure = &PairExposure{}
			summary.ByPair[pos.Pair] = exposure
		}
		exposure.Count++
		exposure.TotalCollateral += pos.Collateral
		exposure.TotalPnl += pos.UnrealizedPnl
		if pos.IsLong {
			exposure.Long++
		} else {
			exposure.Short++
		}
	}
	totals.HighRiskPositions = summary.ByRisk[SeverityHigh]
	if totals.TotalCollateral > 0 {
		totals.TotalPnlPercentage = totals.TotalUnrealizedPnl / totals.TotalCollateral * 100
	}
	if len(positions) > 0 {
		totals.WinRate = float64(totals.ProfitablePositions) / float64(len(positions)) * 100
	}
	return totals, summary
}

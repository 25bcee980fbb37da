package analytics

import (
	"math"
)

// Indicator helpers take prices oldest first.

// SMA averages the last periods prices, or all of them when fewer exist.
func SMA(prices []float64, periods int) float64 {
	if len(prices) == 0 || periods <= 0 {
		return 0
	}
	return mean(lastN(prices, periods))
}

// EMA seeds with the oldest price of the window and smooths forward.
func EMA(prices []float64, periods int) float64 {
	if len(prices) == 0 || periods <= 0 {
		return 0
	}
	window := lastN(prices, periods)
	multiplier := 2 / float64(periods+1)
	ema := window[0]
	for _, price := range window[1:] {
		ema = (price-ema)*multiplier + ema
	}
	return ema
}

// Volatility is the annualised (252 periods) standard deviation of log
// returns over the window, in percent.
func Volatility(prices []float64, periods int) float64 {
	window := lastN(prices, periods)
	if len(window) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 || window[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}
	if len(returns) == 0 {
		return 0
	}
	_, stdDev := meanStdDev(returns)
	return stdDev * math.Sqrt(252) * 100
}

// RSI over periods steps. Too little history reads as neutral (50); no
// losses reads as 100.
func RSI(prices []float64, periods int) float64 {
	if periods <= 0 || len(prices) < periods+1 {
		return 50
	}
	window := prices[len(prices)-periods-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(periods)) / (losses / float64(periods))
	return 100 - 100/(1+rs)
}

type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

func BollingerBands(prices []float64, periods int, multiplier float64) Bands {
	middle := SMA(prices, periods)
	if len(prices) < periods || periods <= 0 {
		return Bands{Upper: middle, Middle: middle, Lower: middle}
	}
	window := prices[len(prices)-periods:]
	var variance float64
	for _, price := range window {
		variance += (price - middle) * (price - middle)
	}
	stdDev := math.Sqrt(variance / float64(periods))
	return Bands{
		Upper:  middle + multiplier*stdDev,
		Middle: middle,
		Lower:  middle - multiplier*stdDev,
	}
}

type CrossSignal string

const (
	CrossBullish CrossSignal = "bullish"
	CrossBearish CrossSignal = "bearish"
	CrossNone    CrossSignal = "none"
)

// Crossover reports whether the short SMA crossed the long SMA on the latest
// price.
func Crossover(prices []float64, shortPeriod, longPeriod int) CrossSignal {
	if shortPeriod <= 0 || longPeriod <= 0 || len(prices) < longPeriod+1 {
		return CrossNone
	}
	previous := prices[:len(prices)-1]
	shortNow, longNow := SMA(prices, shortPeriod), SMA(prices, longPeriod)
	shortPrev, longPrev := SMA(previous, shortPeriod), SMA(previous, longPeriod)
	switch {
	case shortPrev <= longPrev && shortNow > longNow:
		return CrossBullish
	case shortPrev >= longPrev && shortNow < longNow:
		return CrossBearish
	default:
		return CrossNone
	}
}

// PercentChange from the first to the last price.
func PercentChange(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return 0
	}
	return (prices[len(prices)-1] - prices[0]) / prices[0] * 100
}

func HighLow(prices []float64) (high, low float64) {
	if len(prices) == 0 {
		return 0, 0
	}
	high, low = prices[0], prices[0]
	for _, price := range prices[1:] {
		high = math.Max(high, price)
		low = math.Min(low, price)
	}
	return high, low
}

type IndicatorSet struct {
	Samples       int         `json:"samples"`
	Latest        float64     `json:"latest"`
	SMA20         float64     `json:"sma20"`
	EMA20         float64     `json:"ema20"`
	RSI14         float64     `json:"rsi14"`
	Volatility    float64     `json:"volatility"`
	Bollinger     Bands       `json:"bollinger"`
	Crossover     CrossSignal `json:"crossover"`
	PercentChange float64     `json:"percentChange"`
	Sharpe        float64     `json:"sharpe"`
	High          float64     `json:"high"`
	Low           float64     `json:"low"`
}

// Indicators computes the standard set served by the price endpoints.
// Values are rounded to cents except the latest price.
func Indicators(prices []float64) IndicatorSet {
	high, low := HighLow(prices)
	set := IndicatorSet{
		Samples:       len(prices),
		SMA20:         round2(SMA(prices, 20)),
		EMA20:         round2(EMA(prices, 20)),
		RSI14:         round2(RSI(prices, 14)),
		Volatility:    round2(Volatility(prices, 30)),
		Bollinger:     BollingerBands(prices, 20, 2),
		Crossover:     Crossover(prices, 5, 20),
		PercentChange: round2(PercentChange(prices)),
		Sharpe:        round2(SharpeRatio(percentChanges(prices), 0)),
		High:          high,
		Low:           low,
	}
	if len(prices) > 0 {
		set.Latest = prices[len(prices)-1]
	}
	return set
}

package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertHighAPR      AlertType = "high_apr"
	AlertLowLiquidity AlertType = "low_liquidity"
	AlertVolumeSpike  AlertType = "volume_spike"
	AlertPriceTarget  AlertType = "price_target"
)

const (
	highAPRThreshold      = 100.0
	lowTVLThreshold       = 100_000.0
	volumeSurgeMultiplier = 2.0
	unhealthyScore        = 50
	volatilePriceChange   = 10.0
)

// alertNamespace scopes alert ids so the same condition on the same pool
// always gets the same id.
var alertNamespace = uuid.MustParse("3f0c1d8e-6a43-4c55-9a8e-5b7f2a1c9d10")

type Alert struct {
	ID          string    `json:"id"`
	PoolAddress string    `json:"poolAddress"`
	Symbol      string    `json:"symbol"`
	Type        AlertType `json:"type"`
	Message     string    `json:"message"`
	Timestamp   int64     `json:"timestamp"`
	Value       float64   `json:"value"`
}

// newAlert ids the alert by pool, type and rule, so a condition that persists
// keeps its id while its value drifts.
func newAlert(pool Pool, kind AlertType, rule string, message string, value float64, now time.Time) Alert {
	return Alert{
		ID:          uuid.NewSHA1(alertNamespace, []byte(pool.Address+"|"+string(kind)+"|"+rule)).String(),
		PoolAddress: pool.Address,
		Symbol:      pool.Pair(),
		Type:        kind,
		Message:     message,
		Timestamp:   now.UnixMilli(),
		Value:       value,
	}
}

type LiquidityAlert struct {
	Pool   string    `json:"pool"`
	Type   AlertType `json:"type"`
	Reason string    `json:"reason"`
	Value  float64   `json:"value"`
}

// LiquidityAlerts flags APR above 100% and TVL below $100k.
func LiquidityAlerts(pools []Pool) []LiquidityAlert {
	out := make([]LiquidityAlert, 0)
	for _, pool := range pools {
		if pool.APR > highAPRThreshold {
			out = append(out, LiquidityAlert{Pool: pool.Pair(), Type: AlertHighAPR, Reason: "High APR opportunity", Value: pool.APR})
		}
		if pool.TVL < lowTVLThreshold {
			out = append(out, LiquidityAlert{Pool: pool.Pair(), Type: AlertLowLiquidity, Reason: "Low liquidity warning", Value: pool.TVL})
		}
	}
	return out
}

// AlertCategory selects which alert rules BuildAlerts runs.
type AlertCategory string

const (
	CategoryAll       AlertCategory = "all"
	CategoryLiquidity AlertCategory = "liquidity"
	CategoryVolume    AlertCategory = "volume"
	CategoryHealth    AlertCategory = "health"
	CategoryPrice     AlertCategory = "price"
)

func ParseAlertCategory(raw string) (AlertCategory, bool) {
	switch category := AlertCategory(strings.ToLower(strings.TrimSpace(raw))); category {
	case "":
		return CategoryAll, true
	case CategoryAll, CategoryLiquidity, CategoryVolume, CategoryHealth, CategoryPrice:
		return category, true
	default:
		return "", false
	}
}

func (c AlertCategory) includes(other AlertCategory) bool {
	return c == CategoryAll || c == other
}

// BuildAlerts runs the selected rules over pools in a fixed order:
// liquidity, volume, health, price.
func BuildAlerts(pools []Pool, category AlertCategory, now time.Time) []Alert {
	alerts := make([]Alert, 0)

	if category.includes(CategoryLiquidity) {
		for _, pool := range pools {
			if pool.APR > highAPRThreshold {
				alerts = append(alerts, newAlert(pool, AlertHighAPR, "high-apr", "High APR opportunity", pool.APR, now))
			}
			if pool.TVL < lowTVLThreshold {
				alerts = append(alerts, newAlert(pool, AlertLowLiquidity, "low-tvl", "Low liquidity warning", pool.TVL, now))
			}
		}
	}

	if category.includes(CategoryVolume) {
		for _, pool := range VolumeSurges(pools, volumeSurgeMultiplier) {
			alerts = append(alerts, newAlert(pool, AlertVolumeSpike, "volume-surge", "Volume spike detected (>2x average)", pool.Volume24h, now))
		}
	}

	if category.includes(CategoryHealth) {
		for _, pool := range pools {
			if HealthScore(pool) < unhealthyScore {
				alerts = append(alerts, newAlert(pool, AlertLowLiquidity, "health", "Pool health score below 50", pool.TVL, now))
			}
		}
	}

	if category.includes(CategoryPrice) {
		for _, pool := range pools {
			if math.Abs(pool.PriceChange24h) > volatilePriceChange {
				message := fmt.Sprintf("High price volatility: %.2f%%", pool.PriceChange24h)
				alerts = append(alerts, newAlert(pool, AlertVolumeSpike, "price-volatility", message, math.Abs(pool.PriceChange24h), now))
			}
		}
	}

	return alerts
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func ParseSeverity(raw string) (Severity, bool) {
	switch severity := Severity(strings.ToLower(strings.TrimSpace(raw))); severity {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return severity, true
	default:
		return "", false
	}
}

// SeverityOf grades an alert by its type and value. Price target alerts are
// always high.
func SeverityOf(alert Alert) Severity {
	switch alert.Type {
	case AlertLowLiquidity:
		switch {
		case alert.Value < 50_000:
			return SeverityHigh
		case alert.Value < 100_000:
			return SeverityMedium
		default:
			return SeverityLow
		}
	case AlertHighAPR:
		switch {
		case alert.Value > 200:
			return SeverityHigh
		case alert.Value > 100:
			return SeverityMedium
		default:
			return SeverityLow
		}
	case AlertVolumeSpike:
		switch {
		case alert.Value > 1_000_000:
			return SeverityHigh
		case alert.Value > 500_000:
			return SeverityMedium
		default:
			return SeverityLow
		}
	default:
		return SeverityHigh
	}
}

func FilterBySeverity(alerts []Alert, severity Severity) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, alert := range alerts {
		if SeverityOf(alert) == severity {
			out = append(out, alert)
		}
	}
	return out
}

// SortAlerts orders alerts of the same type in place: low liquidity by
// ascending value, everything else by descending value. Each type keeps the
// slots it already occupied, so the interleaving of types is unchanged.
func SortAlerts(alerts []Alert) {
	slots := make(map[AlertType][]int)
	for i, alert := range alerts {
		slots[alert.Type] = append(slots[alert.Type], i)
	}
	for kind, indexes := range slots {
		group := make([]Alert, 0, len(indexes))
		for _, i := range indexes {
			group = append(group, alerts[i])
		}
		ascending := kind == AlertLowLiquidity
		sort.SliceStable(group, func(i, j int) bool {
			if ascending {
				return group[i].Value < group[j].Value
			}
			return group[i].Value > group[j].Value
		})
		for n, i := range indexes {
			alerts[i] = group[n]
		}
	}
}

// PriceTarget fires once the price crosses Price in the given direction.
type PriceTarget struct {
	Symbol string  `json:"symbol"`
	Above  bool    `json:"above"`
	Price  float64 `json:"price"`
}

func (t PriceTarget) Condition() string {
	if t.Above {
		return "above"
	}
	return "below"
}

func (t PriceTarget) Hit(price float64) bool {
	if price <= 0 {
		return false
	}
	if t.Above {
		return price >= t.Price
	}
	return price <= t.Price
}

func PriceTargetAlert(target PriceTarget, price float64, now time.Time) Alert {
	message := fmt.Sprintf("%s price %.4f is %s target %.4f", target.Symbol, price, target.Condition(), target.Price)
	return Alert{
		ID:        uuid.NewSHA1(alertNamespace, []byte(target.Symbol+"|"+target.Condition()+"|"+fmt.Sprint(target.Price))).String(),
		Symbol:    target.Symbol,
		Type:      AlertPriceTarget,
		Message:   message,
		Timestamp: now.UnixMilli(),
		Value:     price,
	}
}

package domain

import "time"

// MetricKind names a cached per-market computation.
type MetricKind string

const (
	KindLiquidity  MetricKind = "liquidity"
	KindVolatility MetricKind = "volatility"
	KindVolume     MetricKind = "volume"
	KindHealth     MetricKind = "health"
	KindRisk       MetricKind = "risk"
	KindSummary    MetricKind = "summary"
	KindCompare    MetricKind = "compare"
)

// MetricKinds lists the per-market kinds in display order.
var MetricKinds = []MetricKind{KindLiquidity, KindVolatility, KindVolume, KindHealth, KindRisk, KindSummary}

// ParseMetricKind validates a per-market metric kind name.
func ParseMetricKind(s string) (MetricKind, bool) {
	for _, k := range MetricKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// CacheKey returns "<kind>:<marketID>".
func (k MetricKind) CacheKey(marketID string) string {
	return string(k) + ":" + marketID
}

// MarketReport wraps a metrics object with the market envelope.
type MarketReport[T any] struct {
	MarketID  string    `json:"marketId"`
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
	Metrics   T         `json:"metrics"`
}

// ComparisonEntry is one market's outcome within a comparison. Exactly one
// of Health or Error is set.
type ComparisonEntry struct {
	MarketID string       `json:"marketId"`
	Ticker   string       `json:"ticker,omitempty"`
	Health   *HealthScore `json:"health,omitempty"`
	Risk     *RiskMetrics `json:"risk,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Comparison is the result of scoring 2 to 5 markets side by side.
type Comparison struct {
	Markets    []ComparisonEntry `json:"markets"`
	BestMarket string            `json:"bestMarket"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Package analysis turns order book and trade data into normalised market
// scores. Every function here is pure: no I/O, no shared state, and total on
// well-typed input, so results can be computed concurrently and cached freely.
package analysis

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

var (
	decimalTwo     = decimal.NewFromInt(2)
	decimalHundred = decimal.NewFromInt(100)
)

// clampScore rounds v half away from zero and clamps it to [0,100].
func clampScore(v float64) int {
	r := math.Round(v)
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > 100:
		return 100
	}
	return int(r)
}

// logScore maps x onto [0,100] logarithmically, reaching 100 at saturation.
func logScore(x, saturation float64) float64 {
	if x <= 0 || saturation <= 0 {
		return 0
	}
	s := 100 * math.Log10(1+x) / math.Log10(1+saturation)
	return math.Min(100, math.Max(0, s))
}

// tradesSince returns the trades executed at or after cutoff, preserving order.
func tradesSince(trades []domain.Trade, cutoff time.Time) []domain.Trade {
	ms := cutoff.UnixMilli()
	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.ExecutedAt >= ms {
			out = append(out, t)
		}
	}
	return out
}

// notional sums price × quantity over trades.
func notional(trades []domain.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.Notional())
	}
	return total
}

package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// DefaultVolatilityWindow is used when no positive window is supplied.
const DefaultVolatilityWindow = 60 * time.Minute

// AnalyzeVolatility scores price dispersion of the trades executed within
// window of now. Trades outside the window are ignored; an empty window
// yields score 0 at level LOW.
func AnalyzeVolatility(trades []domain.Trade, window time.Duration, now time.Time) domain.VolatilityMetrics {
	if window <= 0 {
		window = DefaultVolatilityWindow
	}
	inWindow := tradesSince(trades, now.Add(-window))
	if len(inWindow) == 0 {
		return domain.VolatilityMetrics{
			Level:        domain.VolatilityLow,
			PriceChanges: []float64{},
		}
	}

	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].ExecutedAt < inWindow[j].ExecutedAt
	})

	prices := make([]float64, len(inWindow))
	for i, t := range inWindow {
		prices[i] = t.ExecutionPrice.InexactFloat64()
	}

	// Both only fail on empty input, which is excluded above.
	mean, _ := stats.Mean(prices)
	stdDev, _ := stats.StandardDeviationPopulation(prices)

	var pct float64
	if mean != 0 {
		pct = stdDev / mean * 100
	}
	level, score := classifyVolatility(pct)

	return domain.VolatilityMetrics{
		Score:             clampScore(score),
		StandardDeviation: stdDev,
		VolatilityPercent: pct,
		Level:             level,
		MeanPrice:         mean,
		PriceChanges:      priceChanges(prices),
		SampleSize:        len(prices),
	}
}

// classifyVolatility maps volatilityPercent to its level and unrounded score.
func classifyVolatility(pct float64) (domain.VolatilityLevel, float64) {
	switch {
	case pct < 1:
		return domain.VolatilityLow, 100 - pct*10
	case pct < 3:
		return domain.VolatilityModerate, 80 - (pct-1)*15
	case pct < 7:
		return domain.VolatilityHigh, 50 - (pct-3)*8
	default:
		return domain.VolatilityExtreme, math.Max(0, 30-(pct-7)*3)
	}
}

func priceChanges(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prev := prices[i-1]; prev != 0 {
			out[i-1] = (prices[i] - prev) / prev * 100
		}
	}
	return out
}

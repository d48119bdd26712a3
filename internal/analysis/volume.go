package analysis

import (
	"time"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// VolumeWindow is the trailing period covered by VolumeMetrics.
const VolumeWindow = 24 * time.Hour

// Saturation points of the logarithmic volume terms.
const (
	VolumeSaturation     = 1_000_000 // quote notional
	TradeCountSaturation = 500
)

// AnalyzeVolume scores trading activity over the 24 hours before now. prior
// is the baseline period for volumeChangePercent; nil or zero-notional prior
// leaves the change at 0.
func AnalyzeVolume(trades, prior []domain.Trade, now time.Time) domain.VolumeMetrics {
	current := tradesSince(trades, now.Add(-VolumeWindow))
	if len(current) == 0 {
		return domain.VolumeMetrics{}
	}

	volume := notional(current)
	m := domain.VolumeMetrics{
		Volume24h:  volume.InexactFloat64(),
		TradeCount: len(current),
	}
	m.AverageTradeSize = m.Volume24h / float64(m.TradeCount)

	if prevVolume := notional(prior); prevVolume.IsPositive() {
		m.VolumeChangePercent = volume.Sub(prevVolume).Div(prevVolume).Mul(decimalHundred).InexactFloat64()
	}

	growth := 50 + m.VolumeChangePercent*2
	if growth > 100 {
		growth = 100
	} else if growth < 0 {
		growth = 0
	}

	score := 0.50*logScore(m.Volume24h, VolumeSaturation) +
		0.30*logScore(float64(m.TradeCount), TradeCountSaturation) +
		0.20*growth
	m.Score = clampScore(score)
	return m
}

// PriorPeriod returns the trades executed in the 24 hours preceding the
// current volume window, i.e. [now−48h, now−24h).
func PriorPeriod(trades []domain.Trade, now time.Time) []domain.Trade {
	from := now.Add(-2 * VolumeWindow).UnixMilli()
	to := now.Add(-VolumeWindow).UnixMilli()
	out := make([]domain.Trade, 0)
	for _, t := range trades {
		if t.ExecutedAt >= from && t.ExecutedAt < to {
			out = append(out, t)
		}
	}
	return out
}

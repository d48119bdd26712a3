package analysis

import "github.com/alanyoungcy/marketscore/internal/domain"

// Risk factor weights.
const (
	riskLiquidityWeight  = 0.35
	riskVolatilityWeight = 0.30
	riskSpreadWeight     = 0.20
	riskVolumeWeight     = 0.15
)

// Warning texts, emitted in this order.
const (
	warnVeryLowLiquidity  = "Very low liquidity: large orders may cause significant slippage"
	warnLowLiquidity      = "Low liquidity: consider smaller order sizes"
	warnVeryWideSpread    = "Very wide spread: high trading costs"
	warnWideSpread        = "Wide spread: elevated trading costs"
	warnExtremeVolatility = "Extreme volatility: prices are highly unstable"
	warnHighVolatility    = "High volatility: expect significant price swings"
	warnLowActivity       = "Low trading activity: fewer than 10 trades in 24h"
	warnVolumeDrop        = "Volume has dropped more than 50% versus the previous period"
	warnThinBook          = "Thin order book near mid price: under 1000 units within 1%"
)

// SpreadRisk buckets the spread percent of liq into a 0-100 risk factor on
// its own scale. Bucket upper bounds are inclusive.
func SpreadRisk(liq domain.LiquidityMetrics) int {
	p := liq.SpreadPercent
	switch {
	case p <= 0.1:
		return 10
	case p <= 0.5:
		return 30
	case p <= 1.0:
		return 50
	case p <= 2.0:
		return 70
	default:
		return 90
	}
}

// RiskLevelFor tiers a risk score.
func RiskLevelFor(score int) domain.RiskLevel {
	switch {
	case score < 25:
		return domain.RiskLow
	case score < 50:
		return domain.RiskMedium
	case score < 75:
		return domain.RiskHigh
	default:
		return domain.RiskExtreme
	}
}

// AggregateRisk combines the three analyzer outputs into a risk assessment.
func AggregateRisk(liq domain.LiquidityMetrics, vol domain.VolatilityMetrics, volume domain.VolumeMetrics) domain.RiskMetrics {
	f := domain.RiskFactors{
		LiquidityRisk:  100 - liq.Score,
		VolatilityRisk: 100 - vol.Score,
		SpreadRisk:     SpreadRisk(liq),
		VolumeRisk:     100 - volume.Score,
	}
	score := clampScore(riskLiquidityWeight*float64(f.LiquidityRisk) +
		riskVolatilityWeight*float64(f.VolatilityRisk) +
		riskSpreadWeight*float64(f.SpreadRisk) +
		riskVolumeWeight*float64(f.VolumeRisk))

	return domain.RiskMetrics{
		Score:    score,
		Level:    RiskLevelFor(score),
		Factors:  f,
		Warnings: riskWarnings(f, liq, vol, volume),
	}
}

func riskWarnings(f domain.RiskFactors, liq domain.LiquidityMetrics, vol domain.VolatilityMetrics, volume domain.VolumeMetrics) []string {
	warnings := make([]string, 0)

	switch {
	case f.LiquidityRisk > 70:
		warnings = append(warnings, warnVeryLowLiquidity)
	case f.LiquidityRisk > 50:
		warnings = append(warnings, warnLowLiquidity)
	}

	switch {
	case liq.SpreadPercent > 2.0:
		warnings = append(warnings, warnVeryWideSpread)
	case liq.SpreadPercent > 1.0:
		warnings = append(warnings, warnWideSpread)
	}

	switch vol.Level {
	case domain.VolatilityExtreme:
		warnings = append(warnings, warnExtremeVolatility)
	case domain.VolatilityHigh:
		warnings = append(warnings, warnHighVolatility)
	}

	if volume.TradeCount < 10 {
		warnings = append(warnings, warnLowActivity)
	}
	if volume.VolumeChangePercent < -50 {
		warnings = append(warnings, warnVolumeDrop)
	}
	if liq.DepthWithin1Pct < 1000 {
		warnings = append(warnings, warnThinBook)
	}
	return warnings
}

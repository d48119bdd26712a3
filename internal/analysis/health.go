package analysis

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Health component weights.
const (
	healthLiquidityWeight  = 0.35
	healthVolatilityWeight = 0.25
	healthVolumeWeight     = 0.25
	healthSpreadWeight     = 0.15
)

// weakComponentThreshold marks a component as weak in recommendations.
const weakComponentThreshold = 50

var healthRecommendations = map[domain.HealthStatus]string{
	domain.HealthHealthy:  "Market conditions are healthy. Liquidity is adequate and trading is orderly.",
	domain.HealthWarning:  "Market shows signs of stress. Size orders conservatively and monitor conditions.",
	domain.HealthCritical: "Market conditions are poor. Avoid large positions until conditions improve.",
}

const extremeVolatilityCaveat = " Extreme volatility detected: prices are moving rapidly and slippage is likely."

// SpreadScore buckets the spread percent of liq into a 0-100 score. Bucket
// upper bounds are inclusive. A one-sided book has spread percent 0 and so
// scores 100.
func SpreadScore(liq domain.LiquidityMetrics) int {
	p := liq.SpreadPercent
	switch {
	case p <= 0.1:
		return 100
	case p <= 0.5:
		return 80
	case p <= 1.0:
		return 60
	case p <= 2.0:
		return 40
	case p <= 5.0:
		return 20
	default:
		return 10
	}
}

// HealthFromComponents is the weighted health score of c.
func HealthFromComponents(c domain.HealthComponents) int {
	return clampScore(healthLiquidityWeight*float64(c.Liquidity) +
		healthVolatilityWeight*float64(c.Volatility) +
		healthVolumeWeight*float64(c.Volume) +
		healthSpreadWeight*float64(c.Spread))
}

// HealthStatusFor tiers a health score.
func HealthStatusFor(score int) domain.HealthStatus {
	switch {
	case score >= 70:
		return domain.HealthHealthy
	case score >= 40:
		return domain.HealthWarning
	default:
		return domain.HealthCritical
	}
}

// AggregateHealth combines the three analyzer outputs into a health score.
func AggregateHealth(liq domain.LiquidityMetrics, vol domain.VolatilityMetrics, volume domain.VolumeMetrics) domain.HealthScore {
	c := domain.HealthComponents{
		Liquidity:  liq.Score,
		Volatility: vol.Score,
		Volume:     volume.Score,
		Spread:     SpreadScore(liq),
	}
	score := HealthFromComponents(c)
	status := HealthStatusFor(score)
	return domain.HealthScore{
		Score:          score,
		Status:         status,
		Components:     c,
		Recommendation: recommend(status, c, vol.Level),
	}
}

func recommend(status domain.HealthStatus, c domain.HealthComponents, level domain.VolatilityLevel) string {
	var b strings.Builder
	b.WriteString(healthRecommendations[status])
	if level == domain.VolatilityExtreme {
		b.WriteString(extremeVolatilityCaveat)
	}
	if status == domain.HealthHealthy {
		return b.String()
	}

	named := []struct {
		name  string
		score int
	}{
		{"liquidity", c.Liquidity},
		{"volatility", c.Volatility},
		{"volume", c.Volume},
		{"spread", c.Spread},
	}
	var weak []string
	for _, n := range named {
		if n.score < weakComponentThreshold {
			weak = append(weak, fmt.Sprintf("%s (%d)", n.name, n.score))
		}
	}
	if len(weak) > 0 {
		b.WriteString(" Weak areas: ")
		b.WriteString(strings.Join(weak, ", "))
		b.WriteString(".")
	}
	return b.String()
}

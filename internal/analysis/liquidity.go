package analysis

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Saturation points of the logarithmic depth terms, in base-asset quantity.
const (
	TotalDepthSaturation = 100_000
	Depth1PctSaturation  = 10_000
	Depth5PctSaturation  = 50_000
)

// AnalyzeLiquidity scores one order book snapshot. A one-sided or empty book
// yields midPrice 0, spread 0 and a score built from the depth terms only.
func AnalyzeLiquidity(book domain.OrderBookSnapshot) domain.LiquidityMetrics {
	bidDepth := sumQuantity(book.Buys)
	askDepth := sumQuantity(book.Sells)

	m := domain.LiquidityMetrics{
		BidDepth: bidDepth.InexactFloat64(),
		AskDepth: askDepth.InexactFloat64(),
	}
	m.TotalDepth = m.BidDepth + m.AskDepth

	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()

	var spreadTerm float64
	if hasBid && hasAsk {
		mid := bid.Price.Add(ask.Price).Div(decimalTwo)
		spread := ask.Price.Sub(bid.Price).Abs()
		m.MidPrice = mid.InexactFloat64()
		m.Spread = spread.InexactFloat64()
		if mid.IsPositive() {
			m.SpreadPercent = spread.Div(mid).Mul(decimalHundred).InexactFloat64()
			m.DepthWithin1Pct = depthWithin(book, mid, decimal.NewFromInt(1)).InexactFloat64()
			m.DepthWithin5Pct = depthWithin(book, mid, decimal.NewFromInt(5)).InexactFloat64()
			spreadTerm = math.Max(0, 100-m.SpreadPercent*20)
		} else {
			m.MidPrice = 0
		}
	}

	score := 0.40*spreadTerm +
		0.30*logScore(m.TotalDepth, TotalDepthSaturation) +
		0.15*logScore(m.DepthWithin1Pct, Depth1PctSaturation) +
		0.15*logScore(m.DepthWithin5Pct, Depth5PctSaturation)
	m.Score = clampScore(score)
	return m
}

func sumQuantity(levels []domain.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Quantity)
	}
	return total
}

// depthWithin sums bid quantity priced at or above mid·(1−pct/100) and ask
// quantity priced at or below mid·(1+pct/100).
func depthWithin(book domain.OrderBookSnapshot, mid, pct decimal.Decimal) decimal.Decimal {
	offset := mid.Mul(pct).Div(decimalHundred)
	lower := mid.Sub(offset)
	upper := mid.Add(offset)

	total := decimal.Zero
	for _, l := range book.Buys {
		if l.Price.GreaterThanOrEqual(lower) {
			total = total.Add(l.Quantity)
		}
	}
	for _, l := range book.Sells {
		if l.Price.LessThanOrEqual(upper) {
			total = total.Add(l.Quantity)
		}
	}
	return total
}

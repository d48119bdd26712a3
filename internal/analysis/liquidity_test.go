package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

func TestAnalyzeLiquidity_TightBook(t *testing.T) {
	book := domain.OrderBookSnapshot{
		Buys:  []domain.PriceLevel{level("19.95", "100")},
		Sells: []domain.PriceLevel{level("20.05", "100")},
	}

	m := AnalyzeLiquidity(book)

	assert.Equal(t, 20.0, m.MidPrice)
	assert.InDelta(t, 0.10, m.Spread, 1e-12)
	assert.Equal(t, 0.5, m.SpreadPercent)
	assert.Equal(t, 100.0, m.BidDepth)
	assert.Equal(t, 100.0, m.AskDepth)
	assert.Equal(t, 200.0, m.TotalDepth)
	assert.Equal(t, 200.0, m.DepthWithin1Pct)
	assert.Equal(t, 200.0, m.DepthWithin5Pct)
	assert.Equal(t, 66, m.Score)
}

func TestAnalyzeLiquidity_DepthBands(t *testing.T) {
	book := domain.OrderBookSnapshot{
		Buys: []domain.PriceLevel{
			level("99.5", "10"), // within 1%
			level("97", "20"),   // within 5%
			level("90", "40"),   // outside both
		},
		Sells: []domain.PriceLevel{
			level("100.5", "5"),
			level("104", "15"),
			level("120", "80"),
		},
	}

	m := AnalyzeLiquidity(book)

	assert.Equal(t, 100.0, m.MidPrice)
	assert.Equal(t, 70.0, m.BidDepth)
	assert.Equal(t, 100.0, m.AskDepth)
	assert.Equal(t, m.BidDepth+m.AskDepth, m.TotalDepth)
	assert.Equal(t, 15.0, m.DepthWithin1Pct)
	assert.Equal(t, 50.0, m.DepthWithin5Pct)
}

func TestAnalyzeLiquidity_DegenerateBooks(t *testing.T) {
	tests := []struct {
		name  string
		book  domain.OrderBookSnapshot
		score int
	}{
		{name: "empty", book: domain.OrderBookSnapshot{}, score: 0},
		{
			name:  "bids only",
			book:  domain.OrderBookSnapshot{Buys: []domain.PriceLevel{level("10", "100")}},
			score: clampScore(0.30 * logScore(100, TotalDepthSaturation)),
		},
		{
			name:  "asks only",
			book:  domain.OrderBookSnapshot{Sells: []domain.PriceLevel{level("10", "100")}},
			score: clampScore(0.30 * logScore(100, TotalDepthSaturation)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AnalyzeLiquidity(tt.book)
			assert.Zero(t, m.MidPrice)
			assert.Zero(t, m.Spread)
			assert.Zero(t, m.SpreadPercent)
			assert.Zero(t, m.DepthWithin1Pct)
			assert.Equal(t, tt.score, m.Score)
		})
	}
}

func TestAnalyzeLiquidity_WideSpreadLosesSpreadTerm(t *testing.T) {
	tight := AnalyzeLiquidity(domain.OrderBookSnapshot{
		Buys:  []domain.PriceLevel{level("99.9", "1000")},
		Sells: []domain.PriceLevel{level("100.1", "1000")},
	})
	wide := AnalyzeLiquidity(domain.OrderBookSnapshot{
		Buys:  []domain.PriceLevel{level("90", "1000")},
		Sells: []domain.PriceLevel{level("110", "1000")},
	})

	assert.Greater(t, tight.Score, wide.Score)
	assert.Equal(t, 20.0, wide.SpreadPercent)
}

func TestLogScore(t *testing.T) {
	assert.Zero(t, logScore(0, 1000))
	assert.Zero(t, logScore(-5, 1000))
	assert.Equal(t, 100.0, logScore(1000, 1000))
	assert.Equal(t, 100.0, logScore(1e9, 1000))
	assert.InDelta(t, 50.0, logScore(1000, 999_999), 0.01)
}

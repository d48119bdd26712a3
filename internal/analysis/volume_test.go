package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

func TestAnalyzeVolume(t *testing.T) {
	trades := []domain.Trade{
		trade("10", "100", time.Hour),
		trade("20", "50", 2*time.Hour),
		trade("10", "100", 30*time.Hour), // prior period
	}

	t.Run("with growth", func(t *testing.T) {
		m := AnalyzeVolume(trades, PriorPeriod(trades, testNow), testNow)
		assert.Equal(t, 2000.0, m.Volume24h)
		assert.Equal(t, 2, m.TradeCount)
		assert.Equal(t, 1000.0, m.AverageTradeSize)
		assert.Equal(t, 100.0, m.VolumeChangePercent)
		assert.Equal(t, 53, m.Score)
	})

	t.Run("without baseline", func(t *testing.T) {
		m := AnalyzeVolume(trades, nil, testNow)
		assert.Zero(t, m.VolumeChangePercent)
		assert.Equal(t, 43, m.Score)
	})

	t.Run("decline floors growth term", func(t *testing.T) {
		prior := []domain.Trade{trade("40", "100", 30*time.Hour)}
		m := AnalyzeVolume(trades, prior, testNow)
		assert.Equal(t, -50.0, m.VolumeChangePercent)
		assert.Equal(t, 33, m.Score)
	})
}

func TestAnalyzeVolume_Empty(t *testing.T) {
	old := []domain.Trade{trade("10", "1", 25*time.Hour)}
	for _, in := range [][]domain.Trade{nil, old} {
		assert.Equal(t, domain.VolumeMetrics{}, AnalyzeVolume(in, old, testNow))
	}
}

func TestPriorPeriod(t *testing.T) {
	trades := []domain.Trade{
		trade("1", "1", time.Hour),
		trade("2", "1", 24*time.Hour),
		trade("3", "1", 47*time.Hour),
		trade("4", "1", 48*time.Hour),
		trade("5", "1", 49*time.Hour),
	}

	got := PriorPeriod(trades, testNow)

	prices := make([]string, len(got))
	for i, tr := range got {
		prices[i] = tr.ExecutionPrice.String()
	}
	assert.Equal(t, []string{"3", "4"}, prices)
}

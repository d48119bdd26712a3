package analysis

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func level(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func trade(price, qty string, ago time.Duration) domain.Trade {
	return domain.Trade{
		ExecutionPrice:    decimal.RequireFromString(price),
		ExecutionQuantity: decimal.RequireFromString(qty),
		ExecutedAt:        testNow.Add(-ago).UnixMilli(),
	}
}

// tradesAt builds one trade per price, spaced a minute apart ending ago
// before testNow, most recent first.
func tradesAt(ago time.Duration, prices ...string) []domain.Trade {
	out := make([]domain.Trade, len(prices))
	for i, p := range prices {
		out[len(prices)-1-i] = trade(p, "1", ago+time.Duration(len(prices)-1-i)*time.Minute)
	}
	return out
}

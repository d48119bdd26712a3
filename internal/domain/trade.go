package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection is the aggressor side of a trade.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "buy"
	TradeSell TradeDirection = "sell"
)

// Trade is a single executed print on a market.
type Trade struct {
	TradeID           string          `json:"tradeId"`
	MarketID          string          `json:"marketId"`
	OrderHash         string          `json:"orderHash,omitempty"`
	SubaccountID      string          `json:"subaccountId,omitempty"`
	Direction         TradeDirection  `json:"tradeDirection"`
	ExecutionPrice    decimal.Decimal `json:"executionPrice"`
	ExecutionQuantity decimal.Decimal `json:"executionQuantity"`
	ExecutedAt        int64           `json:"executedAt"` // epoch ms
}

// ExecutedTime returns ExecutedAt as a time.Time.
func (t Trade) ExecutedTime() time.Time {
	return time.UnixMilli(t.ExecutedAt)
}

// Notional is price × quantity in quote currency.
func (t Trade) Notional() decimal.Decimal {
	return t.ExecutionPrice.Mul(t.ExecutionQuantity)
}

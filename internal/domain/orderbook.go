package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price tier on one side of an order book.
type PriceLevel struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp int64           `json:"timestamp"` // epoch ms
}

// OrderBookSnapshot is a full two-sided book for one market. Buys are best
// bid first, sells best ask first. Sequence increases monotonically per
// market and is used to reject stale pushes.
type OrderBookSnapshot struct {
	MarketID string       `json:"marketId"`
	Buys     []PriceLevel `json:"buys"`
	Sells    []PriceLevel `json:"sells"`
	Sequence uint64       `json:"sequence"`
	// UpdatedAt is when this process received the snapshot.
	UpdatedAt time.Time `json:"updatedAt"`
}

// BestBid returns the top buy level, if any.
func (s OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Buys) == 0 {
		return PriceLevel{}, false
	}
	return s.Buys[0], true
}

// BestAsk returns the top sell level, if any.
func (s OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Sells) == 0 {
		return PriceLevel{}, false
	}
	return s.Sells[0], true
}

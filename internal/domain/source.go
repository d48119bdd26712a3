package domain

import "context"

// MarketDataSource is the exchange data provider consumed by the scoring
// service.
type MarketDataSource interface {
	FetchMarkets(ctx context.Context) ([]Market, error)
	FetchOrderBook(ctx context.Context, marketID string) (OrderBookSnapshot, error)
	// FetchTrades returns up to limit trades, most recent first.
	FetchTrades(ctx context.Context, marketID string, limit int) ([]Trade, error)
}

// StreamEventKind discriminates push feed events.
type StreamEventKind string

const (
	StreamOrderBook StreamEventKind = "orderbook"
	StreamTrades    StreamEventKind = "trades"
)

// StreamEvent is one update from a push feed. OrderBook is set for
// StreamOrderBook events and Trades, oldest first, for StreamTrades events.
type StreamEvent struct {
	Kind      StreamEventKind    `json:"kind"`
	MarketID  string             `json:"marketId"`
	OrderBook *OrderBookSnapshot `json:"orderbook,omitempty"`
	Trades    []Trade            `json:"trades,omitempty"`
}

// MarketStream is a push-style feed of order book and trade updates.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, marketIDs []string) error
	OnEvent(handler func(StreamEvent))
	Close() error
}

package indexer

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// APIMarket is a spot market as returned by the markets endpoint.
type APIMarket struct {
	MarketID            string          `json:"marketId"`
	MarketStatus        string          `json:"marketStatus"`
	Ticker              string          `json:"ticker"`
	BaseDenom           string          `json:"baseDenom"`
	QuoteDenom          string          `json:"quoteDenom"`
	MakerFeeRate        decimal.Decimal `json:"makerFeeRate"`
	TakerFeeRate        decimal.Decimal `json:"takerFeeRate"`
	MinPriceTickSize    decimal.Decimal `json:"minPriceTickSize"`
	MinQuantityTickSize decimal.Decimal `json:"minQuantityTickSize"`
}

// ToDomain converts the wire market into a domain.Market.
func (m APIMarket) ToDomain() domain.Market {
	return domain.Market{
		ID:                  m.MarketID,
		Ticker:              m.Ticker,
		BaseDenom:           m.BaseDenom,
		QuoteDenom:          m.QuoteDenom,
		MakerFeeRate:        m.MakerFeeRate,
		TakerFeeRate:        m.TakerFeeRate,
		MinPriceTickSize:    m.MinPriceTickSize,
		MinQuantityTickSize: m.MinQuantityTickSize,
		Status:              m.MarketStatus,
	}
}

// APIPriceLevel is one order book tier.
type APIPriceLevel struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp int64           `json:"timestamp"`
}

func (l APIPriceLevel) toDomain() domain.PriceLevel {
	return domain.PriceLevel{Price: l.Price, Quantity: l.Quantity, Timestamp: l.Timestamp}
}

// APIOrderBook is a two-sided book with its sequence number.
type APIOrderBook struct {
	Buys     []APIPriceLevel `json:"buys"`
	Sells    []APIPriceLevel `json:"sells"`
	Sequence uint64          `json:"sequence"`
}

// ToDomain converts the wire book into a snapshot for marketID.
func (b APIOrderBook) ToDomain(marketID string) domain.OrderBookSnapshot {
	snap := domain.OrderBookSnapshot{
		MarketID: marketID,
		Buys:     make([]domain.PriceLevel, len(b.Buys)),
		Sells:    make([]domain.PriceLevel, len(b.Sells)),
		Sequence: b.Sequence,
	}
	for i, l := range b.Buys {
		snap.Buys[i] = l.toDomain()
	}
	for i, l := range b.Sells {
		snap.Sells[i] = l.toDomain()
	}
	return snap
}

// APITrade is one executed trade. Price and quantity are nested in a price
// level the way the indexer reports them.
type APITrade struct {
	OrderHash      string        `json:"orderHash"`
	SubaccountID   string        `json:"subaccountId"`
	MarketID       string        `json:"marketId"`
	TradeID        string        `json:"tradeId"`
	TradeDirection string        `json:"tradeDirection"`
	Price          APIPriceLevel `json:"price"`
	ExecutedAt     int64         `json:"executedAt"`
}

// ToDomain converts the wire trade into a domain.Trade.
func (t APITrade) ToDomain() domain.Trade {
	return domain.Trade{
		TradeID:           t.TradeID,
		MarketID:          t.MarketID,
		OrderHash:         t.OrderHash,
		SubaccountID:      t.SubaccountID,
		Direction:         domain.TradeDirection(t.TradeDirection),
		ExecutionPrice:    t.Price.Price,
		ExecutionQuantity: t.Price.Quantity,
		ExecutedAt:        t.ExecutedAt,
	}
}

type marketsResponse struct {
	Markets []APIMarket `json:"markets"`
}

type orderBookResponse struct {
	Orderbook APIOrderBook `json:"orderbook"`
}

type tradesResponse struct {
	Trades []APITrade `json:"trades"`
}

// StreamCommand is sent to the stream endpoint to manage subscriptions.
type StreamCommand struct {
	Type      string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel   string   `json:"channel"`
	MarketIDs []string `json:"marketIds"`
}

// StreamMessage is one push from the stream endpoint.
type StreamMessage struct {
	Channel   string        `json:"channel"` // "orderbook" or "trades"
	MarketID  string        `json:"marketId"`
	Orderbook *APIOrderBook `json:"orderbook,omitempty"`
	Trades    []APITrade    `json:"trades,omitempty"`
}

// Package live keeps the latest order book and a bounded trade history per
// market, fed by a push source, and fans updates out to subscribers.
package live

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Defaults for Config fields left at zero.
const (
	DefaultShards           = 32
	DefaultTradeCapacity    = 500
	DefaultSubscriberBuffer = 64
)

// Config sizes a Store.
type Config struct {
	Shards        int
	TradeCapacity int
}

type marketState struct {
	book   *domain.OrderBookSnapshot
	trades *tradeRing
}

type shard struct {
	mu      sync.RWMutex
	markets map[string]*marketState
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Markets          int    `json:"markets"`
	StaleSnapshots   uint64 `json:"staleSnapshots"`
	Subscribers      int    `json:"subscribers"`
	DroppedDelivery  uint64 `json:"droppedDeliveries"`
	TradeCapacity    int    `json:"tradeCapacity"`
	LastUpdateMillis int64  `json:"lastUpdateMillis"`
}

// Store is the live per-market data table. Markets are spread over shards
// by hash so unrelated markets never contend for the same lock; each market
// is updated atomically under its shard lock.
type Store struct {
	shards   []*shard
	capacity int
	broker   *Broker
	now      func() time.Time

	stale      atomic.Uint64
	lastUpdate atomic.Int64
}

// NewStore creates a Store publishing accepted updates to broker.
func NewStore(cfg Config, broker *Broker) *Store {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.TradeCapacity <= 0 {
		cfg.TradeCapacity = DefaultTradeCapacity
	}
	if broker == nil {
		broker = NewBroker()
	}
	s := &Store{
		shards:   make([]*shard, cfg.Shards),
		capacity: cfg.TradeCapacity,
		broker:   broker,
		now:      time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{markets: make(map[string]*marketState)}
	}
	return s
}

// Broker returns the subscription broker.
func (s *Store) Broker() *Broker { return s.broker }

func (s *Store) shardFor(marketID string) *shard {
	return s.shards[xxhash.Sum64String(marketID)%uint64(len(s.shards))]
}

// ApplyOrderBook stores snap as the latest book for marketID unless a
// snapshot with an equal or higher sequence is already stored. It reports
// whether the snapshot was accepted.
func (s *Store) ApplyOrderBook(marketID string, snap domain.OrderBookSnapshot) bool {
	snap.MarketID = marketID
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}

	sh := s.shardFor(marketID)
	sh.mu.Lock()
	st := sh.state(marketID, s.capacity)
	if st.book != nil && snap.Sequence <= st.book.Sequence {
		sh.mu.Unlock()
		s.stale.Add(1)
		return false
	}
	st.book = &snap
	// Publishing under the shard lock keeps per-market delivery in
	// sequence order. Publish never blocks.
	s.broker.Publish(domain.StreamEvent{Kind: domain.StreamOrderBook, MarketID: marketID, OrderBook: &snap})
	sh.mu.Unlock()

	s.touch()
	return true
}

// AddTrades prepends each trade in the order given, so a batch should be
// passed oldest first. History beyond the configured capacity is dropped
// from the tail.
func (s *Store) AddTrades(marketID string, trades ...domain.Trade) {
	if len(trades) == 0 {
		return
	}
	sh := s.shardFor(marketID)
	sh.mu.Lock()
	st := sh.state(marketID, s.capacity)
	published := make([]domain.Trade, len(trades))
	for i, t := range trades {
		t.MarketID = marketID
		st.trades.push(t)
		published[i] = t
	}
	s.broker.Publish(domain.StreamEvent{Kind: domain.StreamTrades, MarketID: marketID, Trades: published})
	sh.mu.Unlock()

	s.touch()
}

// Apply routes a stream event to ApplyOrderBook or AddTrades.
func (s *Store) Apply(ev domain.StreamEvent) {
	switch ev.Kind {
	case domain.StreamOrderBook:
		if ev.OrderBook != nil {
			s.ApplyOrderBook(ev.MarketID, *ev.OrderBook)
		}
	case domain.StreamTrades:
		s.AddTrades(ev.MarketID, ev.Trades...)
	}
}

// OrderBook returns the latest accepted snapshot for marketID.
func (s *Store) OrderBook(marketID string) (domain.OrderBookSnapshot, bool) {
	sh := s.shardFor(marketID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.markets[marketID]
	if !ok || st.book == nil {
		return domain.OrderBookSnapshot{}, false
	}
	return *st.book, true
}

// Trades returns up to limit trades for marketID, most recent first.
// limit <= 0 returns the whole history.
func (s *Store) Trades(marketID string, limit int) []domain.Trade {
	sh := s.shardFor(marketID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.markets[marketID]
	if !ok {
		return nil
	}
	return st.trades.newest(limit)
}

// Markets lists every market with live state, sorted.
func (s *Store) Markets() []string {
	var ids []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id := range sh.markets {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Stats returns store and broker counters.
func (s *Store) Stats() Stats {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.markets)
		sh.mu.RUnlock()
	}
	return Stats{
		Markets:          n,
		StaleSnapshots:   s.stale.Load(),
		Subscribers:      s.broker.Subscribers(),
		DroppedDelivery:  s.broker.Dropped(),
		TradeCapacity:    s.capacity,
		LastUpdateMillis: s.lastUpdate.Load(),
	}
}

func (s *Store) touch() {
	s.lastUpdate.Store(s.now().UnixMilli())
}

// state returns the market entry, creating it. Caller holds sh.mu.
func (sh *shard) state(marketID string, capacity int) *marketState {
	st, ok := sh.markets[marketID]
	if !ok {
		st = &marketState{trades: newTradeRing(capacity)}
		sh.markets[marketID] = st
	}
	return st
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

var (
	idA = "0x" + strings.Repeat("a", 64)
	idB = "0x" + strings.Repeat("b", 64)
	idC = "0x" + strings.Repeat("c", 64)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lvl(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

// deepBook is a tight, deep market.
func deepBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Buys:  []domain.PriceLevel{lvl("19.99", "20000"), lvl("19.90", "30000")},
		Sells: []domain.PriceLevel{lvl("20.01", "20000"), lvl("20.10", "30000")},
	}
}

// thinBook is a wide, shallow market.
func thinBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Buys:  []domain.PriceLevel{lvl("18", "5")},
		Sells: []domain.PriceLevel{lvl("22", "5")},
	}
}

type fakeSource struct {
	mu        sync.Mutex
	markets   []domain.Market
	marketErr error
	books     map[string]domain.OrderBookSnapshot
	trades    map[string][]domain.Trade
	failBook  map[string]error
	delay     time.Duration

	bookCalls   atomic.Int32
	marketCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		markets: []domain.Market{
			{ID: idB, Ticker: "ATOM-USDT", Status: "active"},
			{ID: idA, Ticker: "INJ-USDT", Status: "active"},
			{ID: idC, Ticker: "WETH-USDT", Status: "active"},
		},
		books: map[string]domain.OrderBookSnapshot{
			idA: deepBook(),
			idB: thinBook(),
			idC: deepBook(),
		},
		trades:   map[string][]domain.Trade{},
		failBook: map[string]error{},
	}
}

func (f *fakeSource) FetchMarkets(context.Context) ([]domain.Market, error) {
	f.marketCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marketErr != nil {
		return nil, f.marketErr
	}
	return append([]domain.Market(nil), f.markets...), nil
}

func (f *fakeSource) FetchOrderBook(ctx context.Context, id string) (domain.OrderBookSnapshot, error) {
	f.bookCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.OrderBookSnapshot{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failBook[id]; err != nil {
		return domain.OrderBookSnapshot{}, err
	}
	b, ok := f.books[id]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeSource) FetchTrades(_ context.Context, id string, _ int) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trades[id], nil
}

type fakeLive struct {
	books map[string]domain.OrderBookSnapshot
}

func (f *fakeLive) OrderBook(id string) (domain.OrderBookSnapshot, bool) {
	b, ok := f.books[id]
	return b, ok
}

func (f *fakeLive) Trades(string, int) []domain.Trade { return nil }

// memResultStore is a JSON round-tripping ResultStore.
type memResultStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemResultStore() *memResultStore {
	return &memResultStore{data: make(map[string][]byte)}
}

func (m *memResultStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memResultStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

type memMarketStore struct {
	mu      sync.Mutex
	markets map[string]domain.Market
	err     error
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[string]domain.Market)}
}

func (m *memMarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, mk := range markets {
		m.markets[mk.ID] = mk
	}
	return nil
}

func (m *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func (m *memMarketStore) GetByTicker(_ context.Context, ticker string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markets {
		if mk.MatchesTicker(ticker) {
			return mk, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (m *memMarketStore) List(context.Context) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Market, 0, len(m.markets))
	for _, mk := range m.markets {
		out = append(out, mk)
	}
	return out, nil
}

func (m *memMarketStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.markets)), nil
}

var errIndexerDown = errors.New("indexer down")

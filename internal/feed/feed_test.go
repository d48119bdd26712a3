package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketscore/internal/domain"
	"github.com/alanyoungcy/marketscore/internal/live"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStream struct {
	mu         sync.Mutex
	handler    func(domain.StreamEvent)
	connectErr error
	subscribed []string
	closed     bool
	ready      chan struct{}
}

func newFakeStream() *fakeStream { return &fakeStream{ready: make(chan struct{})} }

func (f *fakeStream) Connect(context.Context) error { return f.connectErr }

func (f *fakeStream) Subscribe(_ context.Context, ids []string) error {
	f.mu.Lock()
	f.subscribed = ids
	f.mu.Unlock()
	close(f.ready)
	return nil
}

func (f *fakeStream) OnEvent(h func(domain.StreamEvent)) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) emit(ev domain.StreamEvent) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

// memBus is an in-process SignalBus.
type memBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

func newMemBus() *memBus { return &memBus{subs: make(map[string][]chan []byte)} }

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		ch <- payload
	}
	return nil
}

func (b *memBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 64)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch, nil
}

func (b *memBus) subscribers(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}

type fakeSource struct {
	books  map[string]domain.OrderBookSnapshot
	trades map[string][]domain.Trade
}

func (f *fakeSource) FetchMarkets(context.Context) ([]domain.Market, error) { return nil, nil }

func (f *fakeSource) FetchOrderBook(_ context.Context, id string) (domain.OrderBookSnapshot, error) {
	b, ok := f.books[id]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeSource) FetchTrades(_ context.Context, id string, _ int) ([]domain.Trade, error) {
	return f.trades[id], nil
}

func snapshot(seq uint64) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		Buys:     []domain.PriceLevel{{Price: decimal.NewFromInt(9), Quantity: decimal.NewFromInt(1)}},
		Sells:    []domain.PriceLevel{{Price: decimal.NewFromInt(11), Quantity: decimal.NewFromInt(1)}},
		Sequence: seq,
	}
}

func trade(id string) domain.Trade {
	return domain.Trade{TradeID: id, ExecutionPrice: decimal.NewFromInt(10), ExecutionQuantity: decimal.NewFromInt(1)}
}

func TestStreamFeed_ForwardsEventsToSink(t *testing.T) {
	store := live.NewStore(live.Config{}, nil)
	stream := newFakeStream()
	f := NewStreamFeed(func() domain.MarketStream { return stream }, []string{"0xabc"}, store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case <-stream.ready:
	case <-time.After(time.Second):
		t.Fatal("feed did not subscribe")
	}
	assert.Equal(t, []string{"0xabc"}, stream.subscribed)

	stream.emit(domain.StreamEvent{Kind: domain.StreamOrderBook, MarketID: "0xabc", OrderBook: snapshot(1)})
	got, ok := store.OrderBook("0xabc")
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Sequence)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, stream.closed)
}

func TestStreamFeed_RetriesFailedConnect(t *testing.T) {
	store := live.NewStore(live.Config{}, nil)
	good := newFakeStream()
	attempts := 0
	f := NewStreamFeed(func() domain.MarketStream {
		attempts++
		if attempts == 1 {
			s := newFakeStream()
			s.connectErr = errors.New("dial refused")
			return s
		}
		return good
	}, []string{"m"}, store, discardLogger())
	f.retry = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx) }()

	select {
	case <-good.ready:
	case <-time.After(time.Second):
		t.Fatal("feed did not retry")
	}
}

func TestStreamFeed_NoMarketsIsNoop(t *testing.T) {
	f := NewStreamFeed(func() domain.MarketStream { t.Fatal("unexpected dial"); return nil }, nil, live.NewStore(live.Config{}, nil), discardLogger())
	assert.NoError(t, f.Run(context.Background()))
}

func TestBusRelay_MirrorsIntoFollower(t *testing.T) {
	bus := newMemBus()
	leader := live.NewStore(live.Config{}, nil)
	follower := live.NewStore(live.Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = NewBusFeed(bus, follower, discardLogger()).Run(ctx) }()
	require.Eventually(t, func() bool { return bus.subscribers(LiveEventsChannel) == 1 }, time.Second, 5*time.Millisecond)

	go func() { _ = NewBusRelay(leader.Broker(), bus, discardLogger()).Run(ctx) }()
	require.Eventually(t, func() bool { return leader.Broker().Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	leader.ApplyOrderBook("m1", *snapshot(7))
	leader.AddTrades("m1", trade("t1"), trade("t2"))

	require.Eventually(t, func() bool { return len(follower.Trades("m1", 0)) == 2 }, time.Second, 5*time.Millisecond)
	got, ok := follower.OrderBook("m1")
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Sequence)

	var newest []string
	for _, tr := range follower.Trades("m1", 0) {
		newest = append(newest, tr.TradeID)
	}
	assert.Equal(t, []string{"t2", "t1"}, newest)
}

func TestBusFeed_SkipsMalformedPayloads(t *testing.T) {
	bus := newMemBus()
	store := live.NewStore(live.Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = NewBusFeed(bus, store, discardLogger()).Run(ctx) }()
	require.Eventually(t, func() bool { return bus.subscribers(LiveEventsChannel) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, LiveEventsChannel, []byte("not json")))
	require.NoError(t, bus.Publish(ctx, LiveEventsChannel, []byte(`{"kind":"trades"}`)))
	require.NoError(t, bus.Publish(ctx, LiveEventsChannel,
		[]byte(`{"kind":"trades","marketId":"m2","trades":[{"tradeId":"x","executionPrice":"1","executionQuantity":"1"}]}`)))

	require.Eventually(t, func() bool { return len(store.Trades("m2", 0)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m2"}, store.Markets())
}

func TestBackfill_SeedsStoreAndSkipsFailures(t *testing.T) {
	src := &fakeSource{
		books: map[string]domain.OrderBookSnapshot{"a": *snapshot(3)},
		// newest first, as the upstream returns them
		trades: map[string][]domain.Trade{"a": {trade("new"), trade("old")}},
	}
	store := live.NewStore(live.Config{}, nil)

	require.NoError(t, Backfill(context.Background(), src, store, []string{"a", "missing"}, 100, discardLogger()))

	_, ok := store.OrderBook("a")
	assert.True(t, ok)
	got := store.Trades("a", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].TradeID)
	assert.Equal(t, []string{"a"}, store.Markets())
}

package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

func TestDecodeStreamMessage(t *testing.T) {
	t.Run("orderbook", func(t *testing.T) {
		ev, ok := decodeStreamMessage([]byte(`{"channel":"orderbook","marketId":"m1",
			"orderbook":{"buys":[{"price":"1","quantity":"2"}],"sells":[],"sequence":7}}`))
		require.True(t, ok)
		assert.Equal(t, domain.StreamOrderBook, ev.Kind)
		require.NotNil(t, ev.OrderBook)
		assert.Equal(t, uint64(7), ev.OrderBook.Sequence)
		assert.Equal(t, "m1", ev.OrderBook.MarketID)
	})

	t.Run("trades reversed to oldest first", func(t *testing.T) {
		ev, ok := decodeStreamMessage([]byte(`{"channel":"trades","marketId":"m1","trades":[
			{"tradeId":"new","price":{"price":"1","quantity":"1"},"executedAt":2},
			{"tradeId":"old","price":{"price":"1","quantity":"1"},"executedAt":1}]}`))
		require.True(t, ok)
		require.Len(t, ev.Trades, 2)
		assert.Equal(t, "old", ev.Trades[0].TradeID)
		assert.Equal(t, "new", ev.Trades[1].TradeID)
		assert.Equal(t, "m1", ev.Trades[0].MarketID)
	})

	for _, raw := range []string{`not json`, `{"channel":"orderbook","marketId":"m1"}`, `{"channel":"x","marketId":"m1"}`, `{"channel":"trades"}`} {
		_, ok := decodeStreamMessage([]byte(raw))
		assert.False(t, ok, raw)
	}
}

func TestStreamClient_SubscribeAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	commands := make(chan StreamCommand, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			var cmd StreamCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			commands <- cmd
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"orderbook","marketId":"m1",
			"orderbook":{"buys":[{"price":"10","quantity":"1"}],"sells":[{"price":"11","quantity":"1"}],"sequence":3}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"trades","marketId":"m1",
			"trades":[{"tradeId":"t1","price":{"price":"10.5","quantity":"2"},"executedAt":1}]}`))
		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewStreamClient("ws"+strings.TrimPrefix(srv.URL, "http"), discardLogger())
	var mu sync.Mutex
	var events []domain.StreamEvent
	client.OnEvent(func(ev domain.StreamEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	defer client.Close()
	require.NoError(t, client.Subscribe(ctx, []string{"m1"}))

	first := <-commands
	second := <-commands
	assert.Equal(t, StreamCommand{Type: "subscribe", Channel: ChannelOrderBook, MarketIDs: []string{"m1"}}, first)
	assert.Equal(t, ChannelTrades, second.Channel)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.StreamOrderBook, events[0].Kind)
	assert.Equal(t, domain.StreamTrades, events[1].Kind)
	assert.Equal(t, "t1", events[1].Trades[0].TradeID)
}

func TestStreamClient_SubscribeRequiresConnection(t *testing.T) {
	client := NewStreamClient("ws://127.0.0.1:1", discardLogger())
	assert.Error(t, client.Subscribe(context.Background(), []string{"m1"}))
	assert.NoError(t, client.Close())
	assert.ErrorIs(t, client.Connect(context.Background()), domain.ErrWSDisconnect)
}

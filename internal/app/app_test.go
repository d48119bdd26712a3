package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketscore/internal/config"
)

const testMarketID = "0x0611780ba69656949525013d947713300f56c37b6175e02f26bffa495c3208fe"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeIndexer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/exchange/spot/v1/markets", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"markets":[{"marketId":"`+testMarketID+`","marketStatus":"active","ticker":"INJ/USDT",
			"baseDenom":"inj","quoteDenom":"usdt","makerFeeRate":"-0.0001","takerFeeRate":"0.001",
			"minPriceTickSize":"0.001","minQuantityTickSize":"0.001"}]}`)
	})
	mux.HandleFunc("GET /api/exchange/spot/v2/orderbook/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"orderbook":{"buys":[{"price":"19.95","quantity":"100","timestamp":1700000000000}],
			"sells":[{"price":"20.05","quantity":"100","timestamp":1700000000000}],"sequence":7}}`)
	})
	mux.HandleFunc("GET /api/exchange/spot/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trades":[
			{"tradeId":"t2","tradeDirection":"sell","price":{"price":"20.1","quantity":"3"},"executedAt":1700000002000},
			{"tradeId":"t1","tradeDirection":"buy","price":{"price":"20","quantity":"5"},"executedAt":1700000001000}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Upstream.BaseURL = fakeIndexer(t).URL
	cfg.Upstream.StreamURL = "ws://127.0.0.1:1/ws"
	cfg.Server.Enabled = false
	return &cfg
}

func TestWire_OptionalInfrastructureDisabled(t *testing.T) {
	cfg := testConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.MarketStore)
	assert.Nil(t, deps.ResultStore)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.Live)
	require.NotNil(t, deps.Scoring)

	markets, err := deps.Markets.List(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)

	families, err := deps.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "marketscore_cache_events_total")
}

func TestResolveLiveMarkets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Live.Enabled = true
	cfg.Live.Markets = []string{"INJ-USDT", testMarketID, "not a market", "ATOM-USDT"}

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, discardLogger())
	ids := a.resolveLiveMarkets(context.Background(), deps)
	assert.Equal(t, []string{testMarketID}, ids, "ticker and id collapse, unknown entries skipped")
}

func TestServe_BackfillsLiveStoreAndStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Live.Enabled = true
	cfg.Live.Markets = []string{"INJ-USDT"}
	cfg.Cache.SweepInterval = config.D(10 * time.Millisecond)

	deps, cleanup, err := Wire(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	a := New(cfg, discardLogger())
	go func() { done <- a.Serve(ctx, deps) }()

	require.Eventually(t, func() bool {
		_, ok := deps.Live.OrderBook(testMarketID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	trades := deps.Live.Trades(testMarketID, 10)
	require.Len(t, trades, 2)
	assert.Equal(t, "t2", trades[0].TradeID, "most recent first")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

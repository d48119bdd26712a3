// Package ws streams live order book and trade updates for one market to a
// WebSocket client.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketscore/internal/domain"
	"github.com/alanyoungcy/marketscore/internal/live"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// sendBufferSize bounds queued updates per subscription; further
	// updates are dropped for this client.
	sendBufferSize = 256

	snapshotTrades = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS middleware.
		return true
	},
}

// LiveStore is the part of the live store the hub reads.
type LiveStore interface {
	OrderBook(marketID string) (domain.OrderBookSnapshot, bool)
	Trades(marketID string, limit int) []domain.Trade
	Broker() *live.Broker
}

// snapshot is the first message on every connection.
type snapshot struct {
	Kind      string                    `json:"kind"`
	MarketID  string                    `json:"marketId"`
	OrderBook *domain.OrderBookSnapshot `json:"orderbook,omitempty"`
	Trades    []domain.Trade            `json:"trades"`
}

// Hub upgrades stream requests and pumps live updates to clients.
type Hub struct {
	store   LiveStore
	logger  *slog.Logger
	clients atomic.Int64
}

// NewHub creates a Hub reading from store.
func NewHub(store LiveStore, logger *slog.Logger) *Hub {
	return &Hub{
		store:  store,
		logger: logger.With(slog.String("component", "ws")),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int64 { return h.clients.Load() }

// Serve upgrades the connection and streams updates of kinds for marketID
// until the client disconnects. The caller has already validated marketID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, marketID string, kinds []domain.StreamEventKind) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{hub: h, conn: conn, done: make(chan struct{})}
	broker := h.store.Broker()
	for _, k := range kinds {
		sub := broker.Subscribe(marketID, k, sendBufferSize)
		defer sub.Close()
		switch k {
		case domain.StreamOrderBook:
			c.books = sub.C
		case domain.StreamTrades:
			c.trades = sub.C
		}
	}

	first := snapshot{Kind: "snapshot", MarketID: marketID, Trades: h.store.Trades(marketID, snapshotTrades)}
	if book, ok := h.store.OrderBook(marketID); ok {
		first.OrderBook = &book
	}

	n := h.clients.Add(1)
	h.logger.Info("ws: client connected", slog.String("market", marketID), slog.Int64("total_clients", n))
	defer func() {
		n := h.clients.Add(-1)
		h.logger.Info("ws: client disconnected", slog.String("market", marketID), slog.Int64("total_clients", n))
	}()

	go c.writePump(first)
	c.readPump()
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	books  <-chan domain.StreamEvent
	trades <-chan domain.StreamEvent
	done   chan struct{}
}

// readPump discards client frames and returns once the connection fails or
// closes. It must run on the handler goroutine.
func (c *client) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *client) writePump(first snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.writeJSON(first); err != nil {
		return
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev, ok := <-c.books:
			if !ok || c.writeJSON(ev) != nil {
				return
			}

		case ev, ok := <-c.trades:
			if !ok || c.writeJSON(ev) != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

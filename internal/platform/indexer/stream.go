package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Stream channels.
const (
	ChannelOrderBook = "orderbook"
	ChannelTrades    = "trades"
)

// StreamClient is a WebSocket client for the indexer push stream. It manages
// the connection lifecycle, restores subscriptions after a reconnect and
// dispatches decoded events to registered handlers.
type StreamClient struct {
	wsURL  string
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	// Subscriptions to restore on reconnect.
	subscriptions []StreamCommand

	handlers  []func(domain.StreamEvent)
	handlerMu sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewStreamClient creates a client for the given stream URL, e.g.
// "wss://indexer.example.com/api/exchange/stream".
func NewStreamClient(wsURL string, logger *slog.Logger) *StreamClient {
	return &StreamClient{
		wsURL:  wsURL,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("indexer/stream: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("indexer/stream: connect: %w", err)
	}

	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readLoop(conn)
	go s.pingLoop(conn)

	for _, cmd := range s.subscriptions {
		if err := s.sendCommand(cmd); err != nil {
			return fmt.Errorf("indexer/stream: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe requests order book and trade pushes for marketIDs.
func (s *StreamClient) Subscribe(ctx context.Context, marketIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("indexer/stream: not connected")
	}

	for _, ch := range []string{ChannelOrderBook, ChannelTrades} {
		cmd := StreamCommand{Type: "subscribe", Channel: ch, MarketIDs: marketIDs}
		if err := s.sendCommand(cmd); err != nil {
			return fmt.Errorf("indexer/stream: subscribe to %s: %w", ch, err)
		}
		s.subscriptions = append(s.subscriptions, cmd)
	}
	return nil
}

// OnEvent registers a handler called for every decoded push.
func (s *StreamClient) OnEvent(handler func(domain.StreamEvent)) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Close shuts down the WebSocket connection and stops the read loop.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}
	return nil
}

// Done is closed once Close has been called.
func (s *StreamClient) Done() <-chan struct{} { return s.done }

// sendCommand writes a JSON command. Caller must hold s.mu.
func (s *StreamClient) sendCommand(cmd StreamCommand) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads messages until the connection fails, then reconnects with
// exponential backoff unless the client was closed.
func (s *StreamClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("indexer/stream: read failed, reconnecting",
				slog.String("error", err.Error()))
			s.reconnect()
			return
		}
		s.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep conn alive.
func (s *StreamClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			current := s.conn == conn
			var err error
			if current {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				err = conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.mu.Unlock()
			if !current || err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a push and dispatches it. Trades arrive most recent
// first and are handed on oldest first so a prepending history ends up with
// the newest trade in front.
func (s *StreamClient) handleMessage(raw []byte) {
	ev, ok := decodeStreamMessage(raw)
	if !ok {
		s.logger.Debug("indexer/stream: dropped unparseable message")
		return
	}

	s.handlerMu.RLock()
	handlers := s.handlers
	s.handlerMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func decodeStreamMessage(raw []byte) (domain.StreamEvent, bool) {
	var msg StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.MarketID == "" {
		return domain.StreamEvent{}, false
	}

	switch msg.Channel {
	case ChannelOrderBook:
		if msg.Orderbook == nil {
			return domain.StreamEvent{}, false
		}
		snap := msg.Orderbook.ToDomain(msg.MarketID)
		return domain.StreamEvent{Kind: domain.StreamOrderBook, MarketID: msg.MarketID, OrderBook: &snap}, true
	case ChannelTrades:
		trades := make([]domain.Trade, len(msg.Trades))
		for i, t := range msg.Trades {
			tr := t.ToDomain()
			tr.MarketID = msg.MarketID
			trades[len(msg.Trades)-1-i] = tr
		}
		return domain.StreamEvent{Kind: domain.StreamTrades, MarketID: msg.MarketID, Trades: trades}, true
	}
	return domain.StreamEvent{}, false
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (s *StreamClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			s.logger.Info("indexer/stream: reconnected")
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Compile-time interface check.
var _ domain.MarketStream = (*StreamClient)(nil)

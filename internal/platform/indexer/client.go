// Package indexer is the client for the exchange indexer API that supplies
// market descriptors, order books and trades, over REST and a WebSocket
// push stream.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is the REST client for the indexer. Requests are paced by a token
// bucket and guarded by a circuit breaker so a failing indexer is not
// hammered while it recovers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a new indexer REST client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "indexer",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("indexer: circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// FetchMarkets returns every spot market listed by the indexer.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	var resp marketsResponse
	if err := c.get(ctx, "/api/exchange/spot/v1/markets", nil, &resp); err != nil {
		return nil, fmt.Errorf("indexer: fetch markets: %w", err)
	}
	markets := make([]domain.Market, 0, len(resp.Markets))
	for _, m := range resp.Markets {
		markets = append(markets, m.ToDomain())
	}
	return markets, nil
}

// FetchOrderBook returns the current order book for marketID.
func (c *Client) FetchOrderBook(ctx context.Context, marketID string) (domain.OrderBookSnapshot, error) {
	var resp orderBookResponse
	path := "/api/exchange/spot/v2/orderbook/" + url.PathEscape(marketID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("indexer: fetch orderbook %s: %w", marketID, err)
	}
	snap := resp.Orderbook.ToDomain(marketID)
	snap.UpdatedAt = time.Now()
	return snap, nil
}

// FetchTrades returns up to limit trades for marketID, most recent first.
func (c *Client) FetchTrades(ctx context.Context, marketID string, limit int) ([]domain.Trade, error) {
	q := url.Values{}
	q.Set("marketId", marketID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp tradesResponse
	if err := c.get(ctx, "/api/exchange/spot/v1/trades", q, &resp); err != nil {
		return nil, fmt.Errorf("indexer: fetch trades %s: %w", marketID, err)
	}
	trades := make([]domain.Trade, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		tr := t.ToDomain()
		if tr.MarketID == "" {
			tr.MarketID = marketID
		}
		trades = append(trades, tr)
	}
	return trades, nil
}

type response struct {
	status int
	body   []byte
}

// get performs a paced, breaker-guarded GET and decodes the JSON body into
// dst. Only transport errors and 5xx responses count against the breaker.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", domain.ErrBreakerOpen, err)
		}
		return err
	}

	r := out.(*response)
	switch {
	case r.status == http.StatusNotFound:
		return domain.ErrNotFound
	case r.status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case r.status >= http.StatusBadRequest:
		return fmt.Errorf("status %d: %s", r.status, truncate(r.body))
	}

	if err := json.Unmarshal(r.body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

// Compile-time interface check.
var _ domain.MarketDataSource = (*Client)(nil)

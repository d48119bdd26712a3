package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Resolver turns a validated identifier into a market.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.MarketRef) (domain.Market, error)
}

// StreamServer upgrades and serves a live stream for one market.
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, marketID string, kinds []domain.StreamEventKind)
}

// StreamHandler validates stream requests before handing them to the
// WebSocket hub.
type StreamHandler struct {
	markets Resolver
	hub     StreamServer
	logger  *slog.Logger
}

// NewStreamHandler creates a StreamHandler. A nil hub means live data is
// disabled and every request gets 503.
func NewStreamHandler(markets Resolver, hub StreamServer, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{markets: markets, hub: hub, logger: logger}
}

// Stream upgrades to a WebSocket carrying live updates for one market.
// GET /api/markets/{id}/stream?kinds=orderbook,trades
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live data is disabled")
		return
	}
	kinds, err := parseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		writeServiceError(w, r, h.logger, "stream", err)
		return
	}
	ref, err := domain.ParseMarketID(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "stream", err)
		return
	}
	m, err := h.markets.Resolve(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, "stream", err)
		return
	}
	h.hub.Serve(w, r, m.ID, kinds)
}

func parseKinds(raw string) ([]domain.StreamEventKind, error) {
	if strings.TrimSpace(raw) == "" {
		return []domain.StreamEventKind{domain.StreamOrderBook, domain.StreamTrades}, nil
	}
	seen := map[domain.StreamEventKind]bool{}
	var kinds []domain.StreamEventKind
	for _, part := range strings.Split(raw, ",") {
		k := domain.StreamEventKind(strings.ToLower(strings.TrimSpace(part)))
		if k != domain.StreamOrderBook && k != domain.StreamTrades {
			return nil, fmt.Errorf("%w: unknown stream kind %q", domain.ErrValidation, part)
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

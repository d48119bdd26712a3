package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer.
type MarketService interface {
	List(ctx context.Context) ([]domain.Market, error)
}

// MarketHandler serves the market registry.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
}

// ListMarkets returns every market, optionally filtered by status and by a
// case-insensitive ticker substring.
// GET /api/markets?status=active&q=usdt
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}

	status := r.URL.Query().Get("status")
	q := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("q")))
	out := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if status != "" && !strings.EqualFold(m.Status, status) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToUpper(m.Ticker), q) {
			continue
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: out, Total: len(out)})
}

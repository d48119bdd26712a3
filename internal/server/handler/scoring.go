package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// ScoringService defines what the scoring handlers need from the service
// layer.
type ScoringService interface {
	Report(ctx context.Context, kind domain.MetricKind, id string) (any, error)
	Compare(ctx context.Context, ids []string) (domain.Comparison, error)
}

// ScoringHandler serves the per-market metric and comparison endpoints.
type ScoringHandler struct {
	scoring ScoringService
	logger  *slog.Logger
}

// NewScoringHandler creates a ScoringHandler.
func NewScoringHandler(scoring ScoringService, logger *slog.Logger) *ScoringHandler {
	return &ScoringHandler{scoring: scoring, logger: logger}
}

// Metric returns the handler for one metric kind.
// GET /api/markets/{id}/{kind}
func (h *ScoringHandler) Metric(kind domain.MetricKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := h.scoring.Report(r.Context(), kind, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, h.logger, string(kind), err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// Compare scores 2 to 5 markets side by side.
// GET /api/compare?markets=INJ-USDT,ATOM-USDT
func (h *ScoringHandler) Compare(w http.ResponseWriter, r *http.Request) {
	refs, err := domain.ParseMarketList(r.URL.Query().Get("markets"))
	if err != nil {
		writeServiceError(w, r, h.logger, "compare", err)
		return
	}
	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.Raw
	}

	cmp, err := h.scoring.Compare(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, h.logger, "compare", err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

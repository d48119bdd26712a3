// Package pipeline runs background jobs that keep derived data current.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// MarketRefresher re-fetches the market catalogue, replacing the cached
// list and mirroring it to any persistent store.
type MarketRefresher interface {
	Refresh(ctx context.Context) ([]domain.Market, error)
}

// MarketSync periodically refreshes the market catalogue so list requests
// and identifier resolution rarely wait on the indexer.
type MarketSync struct {
	refresher MarketRefresher
	logger    *slog.Logger
}

// NewMarketSync creates a new MarketSync.
func NewMarketSync(refresher MarketRefresher, logger *slog.Logger) *MarketSync {
	return &MarketSync{
		refresher: refresher,
		logger:    logger.With(slog.String("component", "market_sync")),
	}
}

// Run executes a single refresh.
func (s *MarketSync) Run(ctx context.Context) error {
	start := time.Now()
	markets, err := s.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("market sync: %w", err)
	}
	s.logger.InfoContext(ctx, "market_sync: refreshed",
		slog.Int("markets", len(markets)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// RunLoop refreshes immediately and then every interval until the context is
// cancelled. Failed refreshes are logged and retried on the next tick.
func (s *MarketSync) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "market_sync: refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market_sync: loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "market_sync: refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

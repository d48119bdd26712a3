// Package service implements the request operations: market identifier
// resolution and per-market scoring.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/marketscore/internal/cache"
	"github.com/alanyoungcy/marketscore/internal/domain"
)

const marketListKey = "markets:all"

// MarketService resolves market identifiers against the exchange market
// list. The list is cached in memory and mirrored to an optional persistent
// store, which serves as a fallback while the indexer is unreachable.
type MarketService struct {
	source domain.MarketDataSource
	store  domain.MarketStore
	cache  *cache.ResultCache[[]domain.Market]
	logger *slog.Logger
}

// NewMarketService creates a MarketService. store may be nil.
func NewMarketService(
	source domain.MarketDataSource,
	store domain.MarketStore,
	listTTL time.Duration,
	obs cache.Observer,
	logger *slog.Logger,
) *MarketService {
	opts := []cache.Option{}
	if obs != nil {
		opts = append(opts, cache.WithObserver(obs))
	}
	return &MarketService{
		source: source,
		store:  store,
		cache:  cache.New[[]domain.Market]("markets", listTTL, opts...),
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// List returns every market sorted by ticker.
func (s *MarketService) List(ctx context.Context) ([]domain.Market, error) {
	if markets, ok := s.cache.Get(marketListKey); ok {
		return markets, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches the market list from the indexer, bypassing the cache.
func (s *MarketService) Refresh(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.source.FetchMarkets(ctx)
	if err != nil {
		if fallback, ok := s.fromStore(ctx, err); ok {
			return fallback, nil
		}
		return nil, fmt.Errorf("market_service: fetch markets: %w: %w", domain.ErrUpstream, err)
	}

	sortMarkets(markets)
	s.cache.Set(marketListKey, markets)

	if s.store != nil {
		if err := s.store.UpsertBatch(ctx, markets); err != nil {
			s.logger.WarnContext(ctx, "market_service: persist markets failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return markets, nil
}

// fromStore serves the persisted list when the indexer is down. The result
// is not cached so the next request retries the indexer.
func (s *MarketService) fromStore(ctx context.Context, cause error) ([]domain.Market, bool) {
	if s.store == nil {
		return nil, false
	}
	markets, err := s.store.List(ctx)
	if err != nil || len(markets) == 0 {
		return nil, false
	}
	s.logger.WarnContext(ctx, "market_service: indexer unavailable, serving stored markets",
		slog.Int("count", len(markets)),
		slog.String("error", cause.Error()),
	)
	sortMarkets(markets)
	return markets, true
}

// Resolve finds the market ref names. Hex ids match Market.ID; tickers
// match Market.Ticker ignoring case and separator.
func (s *MarketService) Resolve(ctx context.Context, ref domain.MarketRef) (domain.Market, error) {
	markets, err := s.List(ctx)
	if err != nil {
		return domain.Market{}, err
	}
	for _, m := range markets {
		if ref.IsHex() && strings.EqualFold(m.ID, ref.ID) {
			return m, nil
		}
		if !ref.IsHex() && m.MatchesTicker(ref.Ticker) {
			return m, nil
		}
	}
	return domain.Market{}, fmt.Errorf("market_service: resolve %q: %w", ref.Raw, domain.ErrNotFound)
}

// CacheStats returns the market list cache counters.
func (s *MarketService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func sortMarkets(markets []domain.Market) {
	sort.SliceStable(markets, func(i, j int) bool {
		if markets[i].Ticker != markets[j].Ticker {
			return markets[i].Ticker < markets[j].Ticker
		}
		return markets[i].ID < markets[j].ID
	})
}

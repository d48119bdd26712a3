package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/marketscore/internal/analysis"
	"github.com/alanyoungcy/marketscore/internal/cache"
	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Defaults for ScoringConfig fields left at zero.
const (
	DefaultTradeLimit   = 500
	DefaultFetchTimeout = 10 * time.Second
)

// ScoringConfig tunes data acquisition and caching.
type ScoringConfig struct {
	TradeLimit       int
	VolatilityWindow time.Duration
	FetchTimeout     time.Duration
	CacheTTL         time.Duration
	// PreferLive reads from the live store when it holds a book for the
	// market instead of calling the indexer.
	PreferLive bool
}

// LiveSource is the read side of the live store.
type LiveSource interface {
	OrderBook(marketID string) (domain.OrderBookSnapshot, bool)
	Trades(marketID string, limit int) []domain.Trade
}

// Resolver turns a validated identifier into a market.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.MarketRef) (domain.Market, error)
}

// Observer receives timing for computations and indexer fetches.
type Observer interface {
	cache.Observer
	ObserveAnalysis(kind string, d time.Duration, err error)
	ObserveUpstream(op string, d time.Duration, err error)
}

// ScoringDeps groups the collaborators of a ScoringService. Live, Shared and
// Observer may be nil.
type ScoringDeps struct {
	Markets  Resolver
	Source   domain.MarketDataSource
	Live     LiveSource
	Shared   domain.ResultStore
	Observer Observer
}

// ScoringService computes per-market metric reports and comparisons.
// Results are memoised in memory, then in the optional shared store, and
// concurrent misses for one key share a single computation.
type ScoringService struct {
	cfg     ScoringConfig
	markets Resolver
	source  domain.MarketDataSource
	live    LiveSource
	shared  domain.ResultStore
	obs     Observer
	cache   *cache.ResultCache[any]
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
}

// NewScoringService creates a ScoringService.
func NewScoringService(cfg ScoringConfig, deps ScoringDeps, logger *slog.Logger) *ScoringService {
	if cfg.TradeLimit <= 0 {
		cfg.TradeLimit = DefaultTradeLimit
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.VolatilityWindow <= 0 {
		cfg.VolatilityWindow = analysis.DefaultVolatilityWindow
	}
	obs := deps.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &ScoringService{
		cfg:     cfg,
		markets: deps.Markets,
		source:  deps.Source,
		live:    deps.Live,
		shared:  deps.Shared,
		obs:     obs,
		cache:   cache.New[any]("results", cfg.CacheTTL, cache.WithObserver(obs)),
		now:     time.Now,
		logger:  logger.With(slog.String("component", "scoring_service")),
	}
}

// Cache exposes the in-process result cache, e.g. for periodic sweeping.
func (s *ScoringService) Cache() *cache.ResultCache[any] { return s.cache }

// CacheStats returns the result cache counters.
func (s *ScoringService) CacheStats() cache.Stats { return s.cache.Stats() }

// Liquidity scores order book depth and spread.
func (s *ScoringService) Liquidity(ctx context.Context, id string) (domain.MarketReport[domain.LiquidityMetrics], error) {
	return perMarket(ctx, s, domain.KindLiquidity, id, func(in inputs) domain.LiquidityMetrics {
		return analysis.AnalyzeLiquidity(in.book)
	})
}

// Volatility scores recent price dispersion.
func (s *ScoringService) Volatility(ctx context.Context, id string) (domain.MarketReport[domain.VolatilityMetrics], error) {
	return perMarket(ctx, s, domain.KindVolatility, id, func(in inputs) domain.VolatilityMetrics {
		return analysis.AnalyzeVolatility(in.trades, s.cfg.VolatilityWindow, in.at)
	})
}

// Volume scores 24h activity against the prior 24h.
func (s *ScoringService) Volume(ctx context.Context, id string) (domain.MarketReport[domain.VolumeMetrics], error) {
	return perMarket(ctx, s, domain.KindVolume, id, func(in inputs) domain.VolumeMetrics {
		return analysis.AnalyzeVolume(in.trades, analysis.PriorPeriod(in.trades, in.at), in.at)
	})
}

// Health aggregates the component scores into a health score.
func (s *ScoringService) Health(ctx context.Context, id string) (domain.MarketReport[domain.HealthScore], error) {
	return perMarket(ctx, s, domain.KindHealth, id, func(in inputs) domain.HealthScore {
		return s.summarize(in).Health
	})
}

// Risk aggregates the component scores into a risk score.
func (s *ScoringService) Risk(ctx context.Context, id string) (domain.MarketReport[domain.RiskMetrics], error) {
	return perMarket(ctx, s, domain.KindRisk, id, func(in inputs) domain.RiskMetrics {
		return s.summarize(in).Risk
	})
}

// Summary returns every metric computed from one data snapshot.
func (s *ScoringService) Summary(ctx context.Context, id string) (domain.MarketReport[domain.MarketSummary], error) {
	return perMarket(ctx, s, domain.KindSummary, id, s.summarize)
}

// Report dispatches to the operation for kind and returns its report.
func (s *ScoringService) Report(ctx context.Context, kind domain.MetricKind, id string) (any, error) {
	switch kind {
	case domain.KindLiquidity:
		return s.Liquidity(ctx, id)
	case domain.KindVolatility:
		return s.Volatility(ctx, id)
	case domain.KindVolume:
		return s.Volume(ctx, id)
	case domain.KindHealth:
		return s.Health(ctx, id)
	case domain.KindRisk:
		return s.Risk(ctx, id)
	case domain.KindSummary:
		return s.Summary(ctx, id)
	}
	return nil, fmt.Errorf("%w: unknown metric kind %q", domain.ErrValidation, kind)
}

// Compare scores 2 to 5 markets concurrently. A market that fails carries
// its error in its entry without affecting the others. BestMarket is the
// highest health score, the first in id order on ties, and empty when every
// market failed.
func (s *ScoringService) Compare(ctx context.Context, ids []string) (domain.Comparison, error) {
	refs, err := domain.ParseMarketRefs(ids)
	if err != nil {
		return domain.Comparison{}, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key() < refs[j].Key() })

	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key()
	}
	key := domain.KindCompare.CacheKey(strings.Join(keys, ","))

	if v, ok := s.cache.Get(key); ok {
		if cmp, ok := v.(domain.Comparison); ok {
			return cmp, nil
		}
	}

	v, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
		start := time.Now()
		entries := make([]domain.ComparisonEntry, len(refs))
		markets := make([]domain.Market, len(refs))

		// Per-market failures are recorded, never returned, so one market
		// cannot cancel its siblings.
		var resolve errgroup.Group
		for i, ref := range refs {
			resolve.Go(func() error {
				entries[i].MarketID = ref.Key()
				m, err := s.markets.Resolve(ctx, ref)
				if err != nil {
					entries[i].Error = err.Error()
					return nil
				}
				markets[i] = m
				entries[i].MarketID, entries[i].Ticker = m.ID, m.Ticker
				return nil
			})
		}
		_ = resolve.Wait()

		// An id and a ticker can name the same market.
		seen := make(map[string]string, len(refs))
		for i, e := range entries {
			if e.Error != "" {
				continue
			}
			if prev, dup := seen[e.MarketID]; dup {
				return nil, fmt.Errorf("%w: %q and %q name the same market", domain.ErrValidation, prev, refs[i].Raw)
			}
			seen[e.MarketID] = refs[i].Raw
		}

		var score errgroup.Group
		for i := range entries {
			if entries[i].Error != "" {
				continue
			}
			score.Go(func() error {
				s.scoreEntry(ctx, &entries[i], markets[i])
				return nil
			})
		}
		_ = score.Wait()

		cmp := domain.Comparison{
			Markets:    entries,
			BestMarket: bestMarket(entries),
			Timestamp:  s.now(),
		}
		s.obs.ObserveAnalysis(string(domain.KindCompare), time.Since(start), nil)

		// Partial results are not memoised so a transient upstream error
		// is retried on the next request.
		if allSucceeded(entries) {
			s.cache.Set(key, cmp)
		}
		return cmp, nil
	})
	if err != nil {
		return domain.Comparison{}, err
	}
	return v.(domain.Comparison), nil
}

// scoreEntry fills entry with the health and risk of a resolved market.
func (s *ScoringService) scoreEntry(ctx context.Context, entry *domain.ComparisonEntry, m domain.Market) {
	report, err := cachedReport(ctx, s, domain.KindSummary, m, s.summarize)
	if err != nil {
		entry.Error = err.Error()
		return
	}
	health, risk := report.Metrics.Health, report.Metrics.Risk
	entry.Health = &health
	entry.Risk = &risk
}

func bestMarket(entries []domain.ComparisonEntry) string {
	best, bestScore := "", -1
	for _, e := range entries {
		if e.Health != nil && e.Health.Score > bestScore {
			best, bestScore = e.MarketID, e.Health.Score
		}
	}
	return best
}

func allSucceeded(entries []domain.ComparisonEntry) bool {
	for _, e := range entries {
		if e.Error != "" {
			return false
		}
	}
	return true
}

func (s *ScoringService) summarize(in inputs) domain.MarketSummary {
	liq := analysis.AnalyzeLiquidity(in.book)
	vol := analysis.AnalyzeVolatility(in.trades, s.cfg.VolatilityWindow, in.at)
	volume := analysis.AnalyzeVolume(in.trades, analysis.PriorPeriod(in.trades, in.at), in.at)
	return domain.MarketSummary{
		Liquidity:  liq,
		Volatility: vol,
		Volume:     volume,
		Health:     analysis.AggregateHealth(liq, vol, volume),
		Risk:       analysis.AggregateRisk(liq, vol, volume),
	}
}

// perMarket validates and resolves id, then returns the cached or freshly
// computed report for kind.
func perMarket[T any](ctx context.Context, s *ScoringService, kind domain.MetricKind, id string, compute func(inputs) T) (domain.MarketReport[T], error) {
	ref, err := domain.ParseMarketID(id)
	if err != nil {
		return domain.MarketReport[T]{}, err
	}
	m, err := s.markets.Resolve(ctx, ref)
	if err != nil {
		return domain.MarketReport[T]{}, err
	}
	return cachedReport(ctx, s, kind, m, compute)
}

// cachedReport looks the report up in the memory cache, then the shared
// store, and otherwise computes it once for all concurrent callers.
func cachedReport[T any](ctx context.Context, s *ScoringService, kind domain.MetricKind, m domain.Market, compute func(inputs) T) (domain.MarketReport[T], error) {
	key := kind.CacheKey(m.ID)
	if v, ok := s.cache.Get(key); ok {
		if r, ok := v.(domain.MarketReport[T]); ok {
			return r, nil
		}
	}

	v, err := s.once(ctx, key, func(ctx context.Context) (any, error) {
		if r, ok := s.sharedGet(ctx, key, new(domain.MarketReport[T])); ok {
			report := *r.(*domain.MarketReport[T])
			// Keep the original expiry; an entry already past it is
			// recomputed.
			if remaining := s.cache.TTL() - s.now().Sub(report.Timestamp); remaining > 0 {
				s.cache.SetWithTTL(key, report, remaining)
				return report, nil
			}
		}

		start := time.Now()
		in, err := s.inputs(ctx, m.ID)
		if err != nil {
			s.obs.ObserveAnalysis(string(kind), time.Since(start), err)
			return nil, err
		}
		report := domain.MarketReport[T]{
			MarketID:  m.ID,
			Ticker:    m.Ticker,
			Timestamp: in.at,
			Metrics:   compute(in),
		}
		s.obs.ObserveAnalysis(string(kind), time.Since(start), nil)

		s.cache.Set(key, report)
		s.sharedSet(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return domain.MarketReport[T]{}, err
	}
	return v.(domain.MarketReport[T]), nil
}

// once runs fn a single time for all concurrent callers of key. fn runs
// detached from any one caller's cancellation so a caller that gives up
// does not fail the others; each caller still returns when its own context
// ends.
func (s *ScoringService) once(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) { return fn(detached) })
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ScoringService) sharedGet(ctx context.Context, key string, dst any) (any, bool) {
	if s.shared == nil {
		return nil, false
	}
	found, err := s.shared.Get(ctx, key, dst)
	if err != nil {
		s.logger.WarnContext(ctx, "scoring_service: shared cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return dst, found
}

func (s *ScoringService) sharedSet(ctx context.Context, key string, value any) {
	if s.shared == nil {
		return
	}
	if err := s.shared.Set(ctx, key, value, s.cache.TTL()); err != nil {
		s.logger.WarnContext(ctx, "scoring_service: shared cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveCacheEvent(string, string)             {}
func (nopObserver) ObserveAnalysis(string, time.Duration, error) {}
func (nopObserver) ObserveUpstream(string, time.Duration, error) {}

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketscore/internal/cache"
	"github.com/alanyoungcy/marketscore/internal/config"
	"github.com/alanyoungcy/marketscore/internal/domain"
	"github.com/alanyoungcy/marketscore/internal/feed"
	"github.com/alanyoungcy/marketscore/internal/pipeline"
	"github.com/alanyoungcy/marketscore/internal/platform/indexer"
	"github.com/alanyoungcy/marketscore/internal/server"
	"github.com/alanyoungcy/marketscore/internal/server/handler"
	"github.com/alanyoungcy/marketscore/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the service until ctx is cancelled: cache sweeping, the live
// feeds when enabled, and the HTTP server when enabled.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	// Cache maintenance.
	sweep := a.cfg.Cache.SweepInterval.Duration
	if sweep > 0 {
		g.Go(func() error {
			deps.Scoring.Cache().Run(ctx, sweep)
			return nil
		})
	}

	// Catalogue refresh keeps the market list warm and the store mirror current.
	if refresh := a.cfg.Cache.MarketsRefresh.Duration; refresh > 0 {
		marketSync := pipeline.NewMarketSync(deps.Markets, a.logger)
		g.Go(func() error {
			return marketSync.RunLoop(ctx, refresh)
		})
	}

	if deps.Live != nil {
		a.startLiveFeeds(ctx, g, deps)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startLiveFeeds keeps the live store current from the configured source and
// optionally relays local updates onto the bus for follower instances.
func (a *App) startLiveFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	switch a.cfg.Live.Source {
	case config.SourceBus:
		busFeed := feed.NewBusFeed(deps.SignalBus, deps.Live, a.logger)
		g.Go(func() error {
			return busFeed.Run(ctx)
		})

	default:
		g.Go(func() error {
			ids := a.resolveLiveMarkets(ctx, deps)
			if len(ids) == 0 {
				a.logger.WarnContext(ctx, "live: no resolvable markets, stream feed idle")
				return nil
			}
			if a.cfg.Live.Backfill {
				err := feed.Backfill(ctx, deps.Indexer, deps.Live, ids, a.cfg.Upstream.TradeLimit, a.logger)
				if err != nil && !errors.Is(err, context.Canceled) {
					a.logger.WarnContext(ctx, "live: backfill incomplete", slog.String("error", err.Error()))
				}
			}
			streamLogger := a.logger.With(slog.String("component", "indexer_stream"))
			newStream := func() domain.MarketStream {
				return indexer.NewStreamClient(a.cfg.Upstream.StreamURL, streamLogger)
			}
			return feed.NewStreamFeed(newStream, ids, deps.Live, a.logger).Run(ctx)
		})

		if a.cfg.Live.Relay {
			relay := feed.NewBusRelay(deps.Live.Broker(), deps.SignalBus, a.logger)
			g.Go(func() error {
				return relay.Run(ctx)
			})
		}
	}
}

// resolveLiveMarkets turns the configured identifiers (hex ids or tickers)
// into market ids. Entries that do not resolve are logged and skipped.
func (a *App) resolveLiveMarkets(ctx context.Context, deps *Dependencies) []string {
	seen := make(map[string]struct{}, len(a.cfg.Live.Markets))
	ids := make([]string, 0, len(a.cfg.Live.Markets))
	for _, raw := range a.cfg.Live.Markets {
		ref, err := domain.ParseMarketID(raw)
		if err != nil {
			a.logger.WarnContext(ctx, "live: invalid market id", slog.String("market", raw), slog.String("error", err.Error()))
			continue
		}
		m, err := deps.Markets.Resolve(ctx, ref)
		if err != nil {
			a.logger.WarnContext(ctx, "live: market not resolved", slog.String("market", raw), slog.String("error", err.Error()))
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids
}

// startHTTPServer adds the HTTP server to the errgroup and shuts it down
// gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	healthDeps := handler.HealthDeps{
		Breaker: deps.Indexer.BreakerState,
		Caches: func() []cache.Stats {
			return []cache.Stats{deps.Scoring.CacheStats(), deps.Markets.CacheStats()}
		},
		StartedAt: a.startedAt,
	}

	// The stream handler answers 503 while the hub is nil.
	var hub handler.StreamServer
	if deps.Live != nil {
		h := ws.NewHub(deps.Live, a.logger)
		hub = h
		healthDeps.Live = deps.Live.Stats
		healthDeps.WSClients = h.Clients
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(healthDeps),
		Markets: handler.NewMarketHandler(deps.Markets, a.logger),
		Scoring: handler.NewScoringHandler(deps.Scoring, a.logger),
		Stream:  handler.NewStreamHandler(deps.Markets, hub, a.logger),
	}

	srvDeps := server.Deps{
		Observer: deps.Metrics,
		Gatherer: deps.Registry,
	}
	if deps.RateLimiter != nil {
		srvDeps.Limiter = deps.RateLimiter
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, srvDeps, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

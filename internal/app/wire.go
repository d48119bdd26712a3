package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alanyoungcy/marketscore/internal/cache/redis"
	"github.com/alanyoungcy/marketscore/internal/config"
	"github.com/alanyoungcy/marketscore/internal/domain"
	"github.com/alanyoungcy/marketscore/internal/instrumentation"
	"github.com/alanyoungcy/marketscore/internal/live"
	"github.com/alanyoungcy/marketscore/internal/platform/indexer"
	"github.com/alanyoungcy/marketscore/internal/service"
	"github.com/alanyoungcy/marketscore/internal/store/postgres"
)

// Dependencies bundles everything the run loop and the CLI commands need.
// It is constructed by Wire and torn down by the returned cleanup function.
// Interface fields are nil when the backing infrastructure is disabled.
type Dependencies struct {
	Indexer *indexer.Client

	// Optional infrastructure
	MarketStore domain.MarketStore
	ResultStore domain.ResultStore
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Live data, nil unless live.enabled
	Live *live.Store

	// Observability
	Registry *prometheus.Registry
	Metrics  *instrumentation.Metrics

	// Services
	Markets *service.MarketService
	Scoring *service.ScoringService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Indexer REST client ---
	deps.Indexer = indexer.NewClient(indexer.ClientConfig{
		BaseURL:           cfg.Upstream.BaseURL,
		Timeout:           cfg.Upstream.Timeout.Duration,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
		BreakerFailures:   cfg.Upstream.BreakerFailures,
		BreakerTimeout:    cfg.Upstream.BreakerTimeout.Duration,
	}, logger.With(slog.String("component", "indexer")))

	// --- PostgreSQL (market catalogue mirror) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.MarketStore = postgres.NewMarketStore(pgClient.Pool())
	}

	// --- Redis (shared results, rate limiting, live bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		if cfg.Redis.SharedResults {
			deps.ResultStore = redis.NewResultStore(redisClient)
		}
	}

	// --- Live store ---
	if cfg.Live.Enabled {
		deps.Live = live.NewStore(live.Config{
			Shards:        cfg.Live.Shards,
			TradeCapacity: cfg.Live.TradeCapacity,
		}, live.NewBroker())
	}

	// --- Metrics ---
	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var liveStats func() live.Stats
	if deps.Live != nil {
		liveStats = deps.Live.Stats
	}
	deps.Metrics = instrumentation.New(deps.Registry, liveStats)

	// --- Services ---
	deps.Markets = service.NewMarketService(
		deps.Indexer,
		deps.MarketStore,
		cfg.Cache.MarketsTTL.Duration,
		deps.Metrics,
		logger,
	)

	scoringDeps := service.ScoringDeps{
		Markets:  deps.Markets,
		Source:   deps.Indexer,
		Shared:   deps.ResultStore,
		Observer: deps.Metrics,
	}
	// Assigned only when present so the interface stays nil otherwise.
	if deps.Live != nil {
		scoringDeps.Live = deps.Live
	}
	deps.Scoring = service.NewScoringService(service.ScoringConfig{
		TradeLimit:       cfg.Upstream.TradeLimit,
		VolatilityWindow: cfg.Analysis.VolatilityWindow.Duration,
		FetchTimeout:     cfg.Upstream.Timeout.Duration,
		CacheTTL:         cfg.Cache.TTL.Duration,
		PreferLive:       cfg.Live.Prefer,
	}, scoringDeps, logger)

	return deps, cleanup, nil
}

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// backfillConcurrency bounds parallel REST fetches during a backfill.
const backfillConcurrency = 4

// Backfill seeds sink with the current order book and recent trades of each
// market so the live store is warm before the first stream push. A market
// that fails is logged and skipped.
func Backfill(ctx context.Context, source domain.MarketDataSource, sink Sink, marketIDs []string, tradeLimit int, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	for _, id := range marketIDs {
		g.Go(func() error {
			if err := backfillMarket(gctx, source, sink, id, tradeLimit); err != nil {
				logger.WarnContext(gctx, "backfill: market skipped",
					slog.String("market", id),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func backfillMarket(ctx context.Context, source domain.MarketDataSource, sink Sink, id string, tradeLimit int) error {
	book, err := source.FetchOrderBook(ctx, id)
	if err != nil {
		return fmt.Errorf("orderbook: %w", err)
	}
	trades, err := source.FetchTrades(ctx, id, tradeLimit)
	if err != nil {
		return fmt.Errorf("trades: %w", err)
	}

	// The source returns newest first; the sink prepends.
	oldestFirst := slices.Clone(trades)
	slices.Reverse(oldestFirst)

	sink.Apply(domain.StreamEvent{Kind: domain.StreamOrderBook, MarketID: id, OrderBook: &book})
	sink.Apply(domain.StreamEvent{Kind: domain.StreamTrades, MarketID: id, Trades: oldestFirst})
	return nil
}

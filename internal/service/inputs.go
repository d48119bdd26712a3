package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// inputs is the data one computation runs on. at is the evaluation time
// for every time-windowed metric.
type inputs struct {
	book   domain.OrderBookSnapshot
	trades []domain.Trade
	at     time.Time
}

// inputs reads from the live store when it is preferred and holds a book
// for the market; otherwise it fetches the book and trades from the indexer
// concurrently under the fetch timeout.
func (s *ScoringService) inputs(ctx context.Context, marketID string) (inputs, error) {
	if s.live != nil && s.cfg.PreferLive {
		if book, ok := s.live.OrderBook(marketID); ok {
			return inputs{
				book:   book,
				trades: s.live.Trades(marketID, s.cfg.TradeLimit),
				at:     s.now(),
			}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var in inputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		book, err := s.source.FetchOrderBook(gctx, marketID)
		s.obs.ObserveUpstream("orderbook", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("fetch orderbook: %w", err)
		}
		in.book = book
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		trades, err := s.source.FetchTrades(gctx, marketID, s.cfg.TradeLimit)
		s.obs.ObserveUpstream("trades", time.Since(start), err)
		if err != nil {
			return fmt.Errorf("fetch trades: %w", err)
		}
		in.trades = trades
		return nil
	})
	if err := g.Wait(); err != nil {
		return inputs{}, fmt.Errorf("scoring_service: market %s: %w: %w", marketID, domain.ErrUpstream, err)
	}
	in.at = s.now()
	return in, nil
}

// Package feed moves live market data into the live store: from the
// indexer push stream, from another instance over the signal bus, and from
// one-shot REST backfills.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// Sink receives decoded stream events; *live.Store satisfies it.
type Sink interface {
	Apply(ev domain.StreamEvent)
}

// connectTimeout bounds a single dial + subscribe attempt.
const connectTimeout = 15 * time.Second

// StreamFeed connects a MarketStream to a Sink for a fixed set of markets.
// The stream client restores its own connection after drops; StreamFeed
// retries the initial connect with a fixed backoff.
type StreamFeed struct {
	newStream func() domain.MarketStream
	marketIDs []string
	sink      Sink
	logger    *slog.Logger
	retry     time.Duration
}

// NewStreamFeed creates a feed that subscribes to marketIDs on streams built
// by newStream.
func NewStreamFeed(newStream func() domain.MarketStream, marketIDs []string, sink Sink, logger *slog.Logger) *StreamFeed {
	return &StreamFeed{
		newStream: newStream,
		marketIDs: marketIDs,
		sink:      sink,
		logger:    logger.With(slog.String("component", "stream_feed")),
		retry:     2 * time.Second,
	}
}

// Run connects, subscribes and forwards events until ctx is cancelled.
func (f *StreamFeed) Run(ctx context.Context) error {
	if len(f.marketIDs) == 0 {
		f.logger.Info("stream_feed: no markets to subscribe, exiting")
		return nil
	}
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("stream_feed: connect failed, retrying", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retry):
		}
	}
}

func (f *StreamFeed) runConnection(ctx context.Context) error {
	stream := f.newStream()
	defer stream.Close()

	stream.OnEvent(f.sink.Apply)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := stream.Connect(dialCtx); err != nil {
		return err
	}
	if err := stream.Subscribe(dialCtx, f.marketIDs); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "stream_feed: subscribed", slog.Int("markets", len(f.marketIDs)))

	<-ctx.Done()
	return ctx.Err()
}

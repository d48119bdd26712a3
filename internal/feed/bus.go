package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketscore/internal/domain"
	"github.com/alanyoungcy/marketscore/internal/live"
)

// LiveEventsChannel carries JSON-encoded domain.StreamEvent values between
// instances.
const LiveEventsChannel = "live:events"

// relayBuffer bounds how many updates the relay queues before dropping.
const relayBuffer = 1024

// BusRelay republishes every update accepted by the local live store onto
// the signal bus so follower instances can mirror it.
type BusRelay struct {
	broker *live.Broker
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewBusRelay creates a relay from broker to bus.
func NewBusRelay(broker *live.Broker, bus domain.SignalBus, logger *slog.Logger) *BusRelay {
	return &BusRelay{
		broker: broker,
		bus:    bus,
		logger: logger.With(slog.String("component", "bus_relay")),
	}
}

// Run forwards updates until ctx is cancelled.
func (r *BusRelay) Run(ctx context.Context) error {
	books := r.broker.Subscribe(live.AllMarkets, domain.StreamOrderBook, relayBuffer)
	defer books.Close()
	trades := r.broker.Subscribe(live.AllMarkets, domain.StreamTrades, relayBuffer)
	defer trades.Close()

	r.logger.InfoContext(ctx, "bus_relay: started")
	defer r.logger.Info("bus_relay: stopped")

	for {
		var ev domain.StreamEvent
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev = <-books.C:
		case ev = <-trades.C:
		}
		if err := r.publish(ctx, ev); err != nil {
			r.logger.Warn("bus_relay: publish failed",
				slog.String("market", ev.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *BusRelay) publish(ctx context.Context, ev domain.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.bus.Publish(ctx, LiveEventsChannel, data)
}

// BusFeed mirrors updates published by a BusRelay into a local Sink.
type BusFeed struct {
	bus    domain.SignalBus
	sink   Sink
	logger *slog.Logger
}

// NewBusFeed creates a BusFeed.
func NewBusFeed(bus domain.SignalBus, sink Sink, logger *slog.Logger) *BusFeed {
	return &BusFeed{
		bus:    bus,
		sink:   sink,
		logger: logger.With(slog.String("component", "bus_feed")),
	}
}

// Run subscribes to LiveEventsChannel and applies each event until ctx is
// cancelled or the subscription closes.
func (f *BusFeed) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, LiveEventsChannel)
	if err != nil {
		return fmt.Errorf("bus_feed: subscribe: %w", err)
	}
	f.logger.InfoContext(ctx, "bus_feed: started")
	defer f.logger.Info("bus_feed: stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.StreamEvent
			if err := json.Unmarshal(data, &ev); err != nil || ev.MarketID == "" {
				f.logger.Debug("bus_feed: dropped malformed event", slog.Int("payload_len", len(data)))
				continue
			}
			f.sink.Apply(ev)
		}
	}
}

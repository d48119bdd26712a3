package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

// AllMarkets subscribes to a kind across every market.
const AllMarkets = ""

type topic struct {
	market string
	kind   domain.StreamEventKind
}

// Broker fans updates out to per-(market, kind) subscribers. Delivery never
// blocks: an update is dropped for a subscriber whose buffer is full.
type Broker struct {
	mu     sync.RWMutex
	topics map[topic]map[uint64]*Subscription
	nextID uint64

	dropped atomic.Uint64
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[topic]map[uint64]*Subscription)}
}

// Subscription is a live update feed. C is closed by Close.
type Subscription struct {
	C <-chan domain.StreamEvent

	ch     chan domain.StreamEvent
	id     uint64
	topic  topic
	broker *Broker
	once   sync.Once
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// Subscribe registers for updates of kind on marketID (AllMarkets for every
// market). buffer bounds how many updates may queue before new ones are
// dropped for this subscriber.
func (b *Broker) Subscribe(marketID string, kind domain.StreamEventKind, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan domain.StreamEvent, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	t := topic{market: marketID, kind: kind}
	sub := &Subscription{C: ch, ch: ch, id: b.nextID, topic: t, broker: b}
	if b.topics[t] == nil {
		b.topics[t] = make(map[uint64]*Subscription)
	}
	b.topics[t][sub.id] = sub
	return sub
}

// SubscribeFunc runs fn for every update on its own goroutine until ctx is
// done. A panic or error from fn is logged and delivery continues.
func (b *Broker) SubscribeFunc(ctx context.Context, marketID string, kind domain.StreamEventKind, buffer int,
	logger *slog.Logger, fn func(domain.StreamEvent) error) {
	sub := b.Subscribe(marketID, kind, buffer)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := safeCall(fn, ev); err != nil {
					logger.Warn("live: subscriber failed",
						slog.String("market", ev.MarketID),
						slog.String("kind", string(ev.Kind)),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}

func safeCall(fn func(domain.StreamEvent) error, ev domain.StreamEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ev)
}

// Publish delivers ev to subscribers of its market and to AllMarkets
// subscribers of its kind.
func (b *Broker) Publish(ev domain.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.deliver(b.topics[topic{market: ev.MarketID, kind: ev.Kind}], ev)
	if ev.MarketID != AllMarkets {
		b.deliver(b.topics[topic{market: AllMarkets, kind: ev.Kind}], ev)
	}
}

func (b *Broker) deliver(subs map[uint64]*Subscription, ev domain.StreamEvent) {
	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.topics[sub.topic]; subs != nil {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	close(sub.ch)
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.topics {
		n += len(subs)
	}
	return n
}

// Dropped returns how many deliveries were skipped for full buffers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

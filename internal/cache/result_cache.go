// Package cache provides the in-process result cache used to memoise market
// computations for a short time-to-live.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultTTL is applied by Set when no TTL is configured.
const DefaultTTL = 30 * time.Second

// Cache event names reported to an Observer.
const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventSet   = "set"
	EventEvict = "evict"
)

// Observer receives cache events, typically to feed metrics.
type Observer interface {
	ObserveCacheEvent(cache, event string)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Name      string  `json:"name"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Evictions uint64  `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hitRate"`
}

type entry[T any] struct {
	data      T
	createdAt time.Time
	ttl       time.Duration
}

func (e entry[T]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// ResultCache is a concurrency-safe key/value store whose entries expire
// after a time-to-live. Expiry is checked on every read; Sweep and Run remove
// expired entries proactively.
type ResultCache[T any] struct {
	name     string
	ttl      time.Duration
	now      func() time.Time
	observer Observer

	mu      sync.Mutex
	entries map[string]entry[T]

	hits, misses, sets, evictions uint64
}

// Option configures a ResultCache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer Observer
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObserver reports hit, miss, set and evict events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New creates a ResultCache with the given default TTL. A non-positive ttl
// falls back to DefaultTTL.
func New[T any](name string, ttl time.Duration, opts ...Option) *ResultCache[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache[T]{
		name:     name,
		ttl:      ttl,
		now:      o.now,
		observer: o.observer,
		entries:  make(map[string]entry[T]),
	}
}

// TTL returns the default time-to-live.
func (c *ResultCache[T]) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key if it has not expired. An expired
// entry is removed and counted as a miss.
func (c *ResultCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.expired(c.now()) {
		delete(c.entries, key)
		c.evictions++
		ok = false
		c.emit(EventEvict)
	}
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.emit(EventMiss)
		var zero T
		return zero, false
	}
	c.hits++
	c.mu.Unlock()
	c.emit(EventHit)
	return e.data, true
}

// Set stores value under key with the default TTL.
func (c *ResultCache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL.
func (c *ResultCache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = entry[T]{data: value, createdAt: c.now(), ttl: ttl}
	c.sets++
	c.mu.Unlock()
	c.emit(EventSet)
}

// Delete removes key, reporting whether it was present.
func (c *ResultCache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry. Counters are kept.
func (c *ResultCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *ResultCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *ResultCache[T]) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Sweep removes every expired entry and returns how many were removed.
func (c *ResultCache[T]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	c.evictions += uint64(removed)
	c.mu.Unlock()
	for i := 0; i < removed; i++ {
		c.emit(EventEvict)
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *ResultCache[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Stats returns the current counters.
func (c *ResultCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Name:      c.name,
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ResultCache[T]) emit(event string) {
	if c.observer != nil {
		c.observer.ObserveCacheEvent(c.name, event)
	}
}

package live

import "github.com/alanyoungcy/marketscore/internal/domain"

// tradeRing is a fixed-capacity trade history. push prepends; once full the
// oldest trade falls off the tail.
type tradeRing struct {
	buf  []domain.Trade
	head int // index of the most recent trade
	size int
}

func newTradeRing(capacity int) *tradeRing {
	return &tradeRing{buf: make([]domain.Trade, capacity), head: capacity - 1}
}

func (r *tradeRing) push(t domain.Trade) {
	r.head = (r.head + 1) % len(r.buf)
	r.buf[r.head] = t
	if r.size < len(r.buf) {
		r.size++
	}
}

// newest copies up to limit trades, most recent first. limit <= 0 means all.
func (r *tradeRing) newest(limit int) []domain.Trade {
	n := r.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Trade, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head-i+len(r.buf))%len(r.buf)]
	}
	return out
}

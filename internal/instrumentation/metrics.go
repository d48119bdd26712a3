// Package instrumentation holds the Prometheus collectors for the scoring
// service.
package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanyoungcy/marketscore/internal/live"
)

const namespace = "marketscore"

// Metrics contains all Prometheus metrics for the service.
type Metrics struct {
	CacheEvents      *prometheus.CounterVec
	AnalysisSeconds  *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamSeconds  *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPSeconds      *prometheus.HistogramVec

	LiveMarkets        prometheus.GaugeFunc
	LiveStaleSnapshots prometheus.CounterFunc
	LiveDropped        prometheus.CounterFunc
}

// New creates the collectors and registers them with reg. liveStats may be
// nil when the live store is disabled.
func New(reg prometheus.Registerer, liveStats func() live.Stats) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		CacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Result cache events by cache name and event (hit, miss, set, evict).",
		}, []string{"cache", "event"}),

		AnalysisSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to compute a metric report, excluding cache hits.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"kind", "outcome"}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Indexer fetches by operation and outcome.",
		}, []string{"op", "outcome"}),

		UpstreamSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Indexer fetch latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),

		HTTPSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	if liveStats != nil {
		m.LiveMarkets = f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_markets",
			Help:      "Markets held in the live store.",
		}, func() float64 { return float64(liveStats().Markets) })
		m.LiveStaleSnapshots = f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_stale_snapshots_total",
			Help:      "Orderbook snapshots rejected for a non-increasing sequence.",
		}, func() float64 { return float64(liveStats().StaleSnapshots) })
		m.LiveDropped = f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_dropped_deliveries_total",
			Help:      "Live updates dropped for subscribers with a full buffer.",
		}, func() float64 { return float64(liveStats().DroppedDelivery) })
	}
	return m
}

// ObserveCacheEvent implements cache.Observer.
func (m *Metrics) ObserveCacheEvent(cache, event string) {
	m.CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveAnalysis records one computed report.
func (m *Metrics) ObserveAnalysis(kind string, d time.Duration, err error) {
	m.AnalysisSeconds.WithLabelValues(kind, outcome(err)).Observe(d.Seconds())
}

// ObserveUpstream records one indexer fetch.
func (m *Metrics) ObserveUpstream(op string, d time.Duration, err error) {
	m.UpstreamRequests.WithLabelValues(op, outcome(err)).Inc()
	m.UpstreamSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPSeconds.WithLabelValues(route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry exposes gauges for the pool, rate limiter, and caches so operators
// can scrape them over /metrics instead of polling each component's stats()
// call.
type Registry struct {
	PoolInUse       prometheus.Gauge
	PoolAvailable   prometheus.Gauge
	RateLimitBlocks prometheus.Counter
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec

	reg *prometheus.Registry
}

// New creates a Registry backed by its own prometheus.Registry, ready to
// serve from Handler().
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		PoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragcore", Subsystem: "pool", Name: "connections_in_use",
		}),
		PoolAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragcore", Subsystem: "pool", Name: "connections_available",
		}),
		RateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "ratelimit", Name: "blocks_total",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "cache", Name: "hits_total",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore", Subsystem: "cache", Name: "misses_total",
		}, []string{"cache"}),
	}
	reg.MustRegister(r.PoolInUse, r.PoolAvailable, r.RateLimitBlocks, r.CacheHits, r.CacheMisses)
	return r
}

// Handler returns the http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

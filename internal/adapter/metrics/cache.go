package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the server-state cache.
type CacheMetrics struct {
	Hits          *prometheus.CounterVec
	Misses        *prometheus.CounterVec
	Joined        *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
	Evictions     prometheus.Counter
	Discarded     prometheus.Counter
	Entries       prometheus.Gauge
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "hits_total",
			Help:      "Total number of queries served from a fresh entry, by operation.",
		}, []string{"op"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "misses_total",
			Help:      "Total number of queries that started a fetch, by operation.",
		}, []string{"op"}),
		Joined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "joined_total",
			Help:      "Total number of queries that joined an in-flight fetch, by operation.",
		}, []string{"op"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "invalidations_total",
			Help:      "Total number of entries marked stale by a mutation, by operation.",
		}, []string{"op"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "evictions_total",
			Help:      "Total number of unsubscribed entries evicted after the retention window.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "discarded_results_total",
			Help:      "Total number of fetch results dropped because the entry was invalidated meanwhile.",
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      "entries",
			Help:      "Number of entries currently held.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Joined, m.Invalidations, m.Evictions, m.Discarded, m.Entries)
	return m
}

package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomfill_window_cache_hits_total",
		Help: "Total number of window cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomfill_window_cache_misses_total",
		Help: "Total number of window cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomfill_window_cache_sets_total",
		Help: "Total number of windows admitted to the cache",
	})
)

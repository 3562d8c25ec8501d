package montecarlo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReplayJobsTotal tracks (run, window) replay jobs executed by the pool.
	ReplayJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomfill_replay_jobs_total",
		Help: "Total number of (run, window) replay jobs executed",
	})

	// BatchDurationSeconds tracks wall time of a full Monte Carlo batch.
	BatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phantomfill_batch_duration_seconds",
		Help:    "Duration of a Monte Carlo batch",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

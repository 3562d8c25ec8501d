package replay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WindowsReplayedTotal tracks replayed windows by status (ok, failed, skipped).
	WindowsReplayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phantomfill_windows_replayed_total",
			Help: "Total number of windows replayed",
		},
		[]string{"status"},
	)

	// FillsTotal tracks simulated fills by trigger rule.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phantomfill_fills_total",
			Help: "Total number of simulated fills",
		},
		[]string{"trigger"},
	)

	// InvalidActionsTotal tracks strategy actions discarded as invalid.
	InvalidActionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomfill_invalid_actions_total",
		Help: "Total number of strategy actions discarded as invalid",
	})
)

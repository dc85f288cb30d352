package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntrySubmissions records keypad submissions by result (saved|invalid|failed).
	EntrySubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipkiosk_entry_submissions_total",
			Help: "Total number of keypad submissions",
		},
		[]string{"result"},
	)

	// StoredEntries tracks the last observed size of the entry collection.
	StoredEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zipkiosk_stored_entries",
			Help: "Number of entries currently stored on the device",
		},
	)

	// OperatorActions counts export and wipe outcomes (exported|cleared|canceled|failed).
	OperatorActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipkiosk_operator_actions_total",
			Help: "Total number of operator export and wipe actions",
		},
		[]string{"action", "result"},
	)

	// AssetResponses counts intercepted asset requests by where they were served from
	// (cache|network|fallback|miss).
	AssetResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zipkiosk_asset_responses_total",
			Help: "Total number of intercepted asset requests",
		},
		[]string{"source"},
	)

	// EvictedSnapshots counts cache versions removed during activation.
	EvictedSnapshots = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zipkiosk_evicted_snapshots_total",
			Help: "Total number of asset cache versions evicted on activation",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zipkiosk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

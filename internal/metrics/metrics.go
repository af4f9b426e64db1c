package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TransfersAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settleflow_transfers_accepted_total",
			Help: "Total number of transfer intents durably recorded.",
		},
		[]string{"operation"},
	)
	EventsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settleflow_events_settled_total",
			Help: "Total number of events finalized by settlement.",
		},
		[]string{"outcome"},
	)
	SettleBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settleflow_settle_batch_duration_seconds",
			Help:    "Duration of settlement batches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(TransfersAccepted, EventsSettled, SettleBatchDuration)
}

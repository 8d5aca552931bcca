package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Definition
var (
	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlens_predictions_total",
			Help: "Total number of per-stop predictions generated, by travel-time tier.",
		},
		[]string{"tier"},
	)
	dwellTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlens_dwell_tier_total",
			Help: "Total number of dwell estimates folded into predictions, by tier.",
		},
		[]string{"tier"},
	)
	lowConfidenceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transitlens_low_confidence_predictions_total",
			Help: "Total number of predictions that fell through to the schedule.",
		},
	)
	samplesAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlens_samples_accepted_total",
			Help: "Total number of observed traversals admitted into the caches, by kind.",
		},
		[]string{"kind"},
	)
	samplesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlens_samples_rejected_total",
			Help: "Total number of observed traversals refused by the sample filter, by reason.",
		},
		[]string{"reason"},
	)
	parseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transitlens_parse_failures_total",
			Help: "Total number of messages that failed to decode, by stream.",
		},
		[]string{"stream"},
	)
	canceledSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transitlens_canceled_trip_skips_total",
			Help: "Total number of position reports skipped because their trip is flagged canceled.",
		},
	)
	evictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transitlens_cache_evictions_total",
			Help: "Total number of entries removed from the TTL cache by the sweeper.",
		},
	)
	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transitlens_cache_entries",
			Help: "Current number of live entries per cache.",
		},
		[]string{"cache"},
	)
	publishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transitlens_publish_failures_total",
			Help: "Total number of predictions the sink failed to publish.",
		},
	)
)

package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Price adjustments committed to the ledger, partitioned by trigger
	adjustmentsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_adjustments_applied_total",
			Help: "Total number of price adjustments committed to the ledger",
		},
		[]string{"trigger", "auto"},
	)

	// Adjustments reverted within the revert window
	adjustmentsRevertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_adjustments_reverted_total",
			Help: "Total number of price adjustments reverted",
		},
	)

	// Experiment traffic
	experimentExposuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_experiment_exposures_total",
			Help: "Total number of experiment exposures recorded",
		},
	)
	experimentConversionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_experiment_conversions_total",
			Help: "Total number of experiment conversions recorded",
		},
	)
)

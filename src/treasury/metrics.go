package treasury

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_treasury_rows_inserted",
			Help: "Number of treasury ledger rows inserted",
		},
		[]string{"type"},
	)
	prometheusRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_treasury_rows_skipped",
			Help: "Number of records skipped because they were already recorded, unaccepted or malformed",
		},
		[]string{"type", "reason"},
	)
	prometheusAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_treasury_api_errors",
			Help: "Number of failed history api calls",
		},
		[]string{"api"},
	)
	prometheusSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "governance_treasury_sync_seconds",
			Help:    "Duration of a full treasury sync",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

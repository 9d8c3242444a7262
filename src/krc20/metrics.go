package krc20

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusOperations   *prometheus.CounterVec
	prometheusSubmittedTxs *prometheus.CounterVec
	prometheusConfirmWait  *prometheus.HistogramVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusOperations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_krc20_operations",
				Help: "Number of krc20 operations by op and outcome",
			},
			[]string{"op", "outcome"},
		)
		prometheusSubmittedTxs = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_krc20_submitted_txs",
				Help: "Number of commit and reveal transactions submitted",
			},
			[]string{"phase"},
		)
		prometheusConfirmWait = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "governance_krc20_confirmation_seconds",
				Help:    "Time spent waiting on commit and reveal confirmations",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"phase"},
		)
	})
}

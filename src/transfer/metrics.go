package transfer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusTransfers    *prometheus.CounterVec
	prometheusSubmittedTxs prometheus.Counter

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusTransfers = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "governance_transfers",
				Help: "Number of fund transfers by outcome",
			},
			[]string{"outcome"},
		)
		prometheusSubmittedTxs = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "governance_transfer_submitted_txs",
				Help: "Number of transactions submitted by the transfer engine",
			},
		)
	})
}

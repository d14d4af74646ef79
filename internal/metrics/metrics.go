// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HoldsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashsale_holds_created_total",
		Help: "Holds successfully reserved.",
	})

	HoldsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashsale_holds_rejected_total",
		Help: "Hold requests rejected because requested quantity exceeded available stock.",
	})

	HoldsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashsale_holds_released_total",
		Help: "Expired holds released back to the available pool.",
	})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flashsale_orders_created_total",
		Help: "Holds promoted to orders.",
	})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashsale_settlements_total",
		Help: "Settlement notifications by outcome and result.",
	}, []string{"outcome", "result"})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flashsale_tx_retries_total",
		Help: "Transaction attempts retried after a write conflict.",
	}, []string{"op"})
)

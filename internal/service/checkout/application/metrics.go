// internal/service/checkout/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_payment_attempts_total",
		Help: "Payment attempts by outcome.",
	}, []string{"outcome"})

	checkoutRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopcore_checkout_requests_total",
		Help: "Checkout submissions by outcome.",
	}, []string{"outcome"})

	dedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopcore_checkout_dedup_hits_total",
		Help: "Checkout submissions collapsed by the in-process deduplicator.",
	})

	lockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopcore_payment_lock_conflicts_total",
		Help: "Payment attempts rejected because another attempt held the order row lock.",
	})
)

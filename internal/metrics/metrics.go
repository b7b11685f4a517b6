// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

var (
	CreditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Credit ledger operations by kind, credit type and outcome.",
	}, []string{"op", "credit_type", "result"})

	ContractTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Contract lifecycle events by event and outcome.",
	}, []string{"event", "result"})

	RefundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "refund",
		Name:      "requests_total",
		Help:      "Refund requests by outcome code.",
	}, []string{"result"})

	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limiter decisions by endpoint.",
	}, []string{"endpoint", "allowed"})

	ExpiredContracts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "expiry",
		Name:      "contracts_total",
		Help:      "Contracts visited by the expiry job by outcome.",
	}, []string{"result"})

	ExpiryRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contracts",
		Subsystem: "expiry",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one expiry batch.",
		Buckets:   prometheus.DefBuckets,
	})

	PIIDecrypts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contracts",
		Subsystem: "pii",
		Name:      "decrypts_total",
		Help:      "PII field decrypt attempts by field and outcome.",
	}, []string{"field", "result"})
)

// Result converts an error into a low-cardinality label value: "ok" or the error kind.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

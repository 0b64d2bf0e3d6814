package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts routed checkout decisions.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_checkout_decisions_total",
			Help: "Checkout decisions by kind and code origin",
		},
		[]string{"decision", "origin"},
	)

	// AttemptsTotal counts finished checkout attempts by final state.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_checkout_attempts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	// GuardRejections counts triggers rejected because an attempt was running.
	GuardRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_checkout_guard_rejections_total",
			Help: "Checkout triggers rejected by the in-flight guard",
		},
	)

	// DraftOrderDuration observes order API latency.
	DraftOrderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helios_draft_order_duration_seconds",
			Help:    "Duration of draft order creation calls",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"outcome"},
	)

	// HintMismatches counts cached discount codes that disagreed with a
	// fresh resolution.
	HintMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_session_hint_mismatches_total",
			Help: "Cached discount hints that differed from the fresh decision",
		},
	)
)

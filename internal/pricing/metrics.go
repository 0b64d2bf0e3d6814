package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesTotal counts cart quotes by the decision they previewed.
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_pricing_quotes_total",
			Help: "Cart quotes served by previewed checkout decision",
		},
		[]string{"decision"},
	)

	// AmbiguousLines counts lines whose scope eligibility could not be
	// verified and therefore resolved to no discount.
	AmbiguousLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helios_pricing_ambiguous_eligibility_total",
			Help: "Lines resolved to no discount because eligibility could not be verified",
		},
	)
)

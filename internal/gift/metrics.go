package gift

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncOutcomes counts gift syncs and explicit adds by outcome.
var SyncOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "helios_gift_sync_outcomes_total",
		Help: "Free gift sync outcomes",
	},
	[]string{"outcome"},
)

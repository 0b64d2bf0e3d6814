package storefront

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DegradedLookups counts product and collection reads that failed and
	// were degraded to "no tags" or "unverified membership".
	DegradedLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_storefront_degraded_lookups_total",
			Help: "Storefront catalog lookups that failed and were degraded",
		},
		[]string{"kind"},
	)

	// MembershipCacheResults counts collection membership cache lookups.
	MembershipCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helios_collection_cache_lookups_total",
			Help: "Collection membership cache lookups by result",
		},
		[]string{"result"},
	)
)

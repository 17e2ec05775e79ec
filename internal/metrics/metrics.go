package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ObservationsTotal counts accepted observations by outcome of the
	// index reconciliation branch taken.
	ObservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_observations_total",
		Help: "Total number of recorded price observations",
	}, []string{"outcome"})

	// RescansTotal counts full latest-table rescans, the only expensive
	// path in index maintenance.
	RescansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "price_index_rescans_total",
		Help: "Total number of lowest-price index rescans",
	})

	// CacheLookupsTotal counts read-cache lookups by result.
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "price_cache_lookups_total",
		Help: "Total number of read cache lookups",
	}, []string{"result"})
)

// Reconciliation outcomes recorded on ObservationsTotal.
const (
	OutcomeCreated   = "created"
	OutcomeNewMin    = "new_minimum"
	OutcomeRescanned = "rescanned"
	OutcomeUnchanged = "unchanged"
	OutcomeWindowed  = "windowed"
)

func init() {
	prometheus.MustRegister(ObservationsTotal)
	prometheus.MustRegister(RescansTotal)
	prometheus.MustRegister(CacheLookupsTotal)
}

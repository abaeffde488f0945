package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TierPriceUpdatesTotal counts seller price edits by tier range and outcome.
	TierPriceUpdatesTotal *prometheus.CounterVec
	// ListingSavesTotal counts listing save attempts by outcome.
	ListingSavesTotal *prometheus.CounterVec
	// MarketPriceComputationsTotal counts market price derivations by caller.
	MarketPriceComputationsTotal *prometheus.CounterVec
	// CatalogSyncTotal tracks catalog sync delivery outcomes.
	CatalogSyncTotal *prometheus.CounterVec
	// CatalogSyncLatency records catalog sync attempt latency in milliseconds.
	CatalogSyncLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TierPriceUpdatesTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_price_updates_total",
			Help:      "Count of tier seller price updates by range and outcome.",
		}, []string{"range", "result"}))
		ListingSavesTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_saves_total",
			Help:      "Count of listing save attempts by outcome.",
		}, []string{"result"}))
		MarketPriceComputationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_price_computations_total",
			Help:      "Count of market price derivations by source.",
		}, []string{"source"}))
		CatalogSyncTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_total",
			Help:      "Count of catalog sync delivery outcomes.",
		}, []string{"result"}))
		CatalogSyncLatency = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_sync_duration_ms",
			Help:      "Latency for catalog sync attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
	})
}

// IncTierPriceUpdate records a tier price edit when domain metrics are registered.
func IncTierPriceUpdate(rangeLabel, result string) {
	if TierPriceUpdatesTotal != nil {
		TierPriceUpdatesTotal.WithLabelValues(rangeLabel, result).Inc()
	}
}

// IncListingSave records a listing save outcome when domain metrics are registered.
func IncListingSave(result string) {
	if ListingSavesTotal != nil {
		ListingSavesTotal.WithLabelValues(result).Inc()
	}
}

// IncMarketPriceComputation records a market price derivation when domain metrics are registered.
func IncMarketPriceComputation(source string) {
	if MarketPriceComputationsTotal != nil {
		MarketPriceComputationsTotal.WithLabelValues(source).Inc()
	}
}

// ObserveCatalogSync records a catalog sync attempt when domain metrics are registered.
func ObserveCatalogSync(result string, ms float64) {
	if CatalogSyncTotal != nil {
		CatalogSyncTotal.WithLabelValues(result).Inc()
	}
	if CatalogSyncLatency != nil {
		CatalogSyncLatency.WithLabelValues(result).Observe(ms)
	}
}

package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SaleTransitionsTotal counts engine operations by kind (create, return,
	// void, unvoid) and result (ok or the error code).
	SaleTransitionsTotal *prometheus.CounterVec
	// SaleTransitionLatency records engine operation latency in milliseconds.
	SaleTransitionLatency *prometheus.HistogramVec
	// DomainEventsTotal counts emitted domain events per topic.
	DomainEventsTotal *prometheus.CounterVec
	// TaxExcludedItemsTotal counts line items flagged by tax reconciliation.
	TaxExcludedItemsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SaleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_transitions_total",
			Help:      "Count of sale engine operations by kind and result.",
		}, []string{"kind", "result"})
		SaleTransitionLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_transition_duration_ms",
			Help:      "Latency of sale engine operations in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"kind"})
		DomainEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Count of emitted domain events by topic.",
		}, []string{"topic"})
		TaxExcludedItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_reconciliation_excluded_items_total",
			Help:      "Line items flagged as tax-excluded by reconciliation reports.",
		})

		mustRegisterCollector(reg, SaleTransitionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SaleTransitionsTotal = v
			}
		})
		mustRegisterCollector(reg, SaleTransitionLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SaleTransitionLatency = v
			}
		})
		mustRegisterCollector(reg, DomainEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DomainEventsTotal = v
			}
		})
		mustRegisterCollector(reg, TaxExcludedItemsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				TaxExcludedItemsTotal = v
			}
		})
	})
}

// ObserveSaleTransition records one engine operation. It is a no-op until
// MustRegisterDomainMetrics has run.
func ObserveSaleTransition(kind, result string, elapsedMs float64) {
	if SaleTransitionsTotal == nil || SaleTransitionLatency == nil {
		return
	}
	SaleTransitionsTotal.WithLabelValues(kind, result).Inc()
	SaleTransitionLatency.WithLabelValues(kind).Observe(elapsedMs)
}

// AddTaxExcludedItems increments the reconciliation counter.
func AddTaxExcludedItems(n int) {
	if TaxExcludedItemsTotal == nil || n <= 0 {
		return
	}
	TaxExcludedItemsTotal.Add(float64(n))
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

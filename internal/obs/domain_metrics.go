package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts priced quotes by pricing source.
	QuotesTotal *prometheus.CounterVec
	// DiscountValidationsTotal counts discount code checks by store source and result.
	DiscountValidationsTotal *prometheus.CounterVec
	// DiscountFallbackTotal counts lookups answered by the local table after the primary failed.
	DiscountFallbackTotal prometheus.Counter
	// ReservationsTotal counts capacity reservations by class and outcome.
	ReservationsTotal *prometheus.CounterVec
	// CapacityUtilisation reports today's percent used per service class.
	CapacityUtilisation *prometheus.GaugeVec
	// OrdersConfirmedTotal counts confirmed orders.
	OrdersConfirmedTotal prometheus.Counter
	// EventsPublishedTotal tracks domain event publishing outcomes.
	EventsPublishedTotal *prometheus.CounterVec
	// EventPublishLatency records publish latency in milliseconds.
	EventPublishLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of priced quotes by pricing source.",
		}, []string{"source"})
		DiscountValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_validations_total",
			Help:      "Count of discount code validations by source and result.",
		}, []string{"source", "result"})
		DiscountFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_fallback_total",
			Help:      "Number of discount lookups served by the local fallback table.",
		})
		ReservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_reservations_total",
			Help:      "Count of capacity reservations by service class and result.",
		}, []string{"class", "result"})
		CapacityUtilisation = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_percent_used",
			Help:      "Percent of today's capacity used per service class.",
		}, []string{"class"})
		OrdersConfirmedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Total number of confirmed orders.",
		})
		EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Count of domain events published by topic and result.",
		}, []string{"topic", "result"})
		EventPublishLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_ms",
			Help:      "Latency for domain event publishing in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"topic"})

		QuotesTotal = register(reg, QuotesTotal)
		DiscountValidationsTotal = register(reg, DiscountValidationsTotal)
		DiscountFallbackTotal = register(reg, DiscountFallbackTotal)
		ReservationsTotal = register(reg, ReservationsTotal)
		CapacityUtilisation = register(reg, CapacityUtilisation)
		OrdersConfirmedTotal = register(reg, OrdersConfirmedTotal)
		EventsPublishedTotal = register(reg, EventsPublishedTotal)
		EventPublishLatency = register(reg, EventPublishLatency)
	})
}

package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"chainlogistics.org/internal/tracking"
)

// Domain metrics fed from tracking notices.
var (
	productsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_products_total",
		Help: "Total number of registered products.",
	})

	productsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_products_active",
		Help: "Number of active products.",
	})

	eventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_appended_total",
			Help: "Tracking events appended, by event type.",
		},
		[]string{"event_type"},
	)

	transfersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracking_transfers_total",
		Help: "Product ownership transfers.",
	})
)

func registerDomainMetrics() {
	prometheus.MustRegister(productsTotal, productsActive, eventsAppended, transfersTotal)
}

// SetStats refreshes the aggregate gauges from a stats snapshot.
func SetStats(s tracking.Stats) {
	productsTotal.Set(float64(s.TotalProducts))
	productsActive.Set(float64(s.ActiveProducts))
}

// Observe updates domain counters from a published notice.
func Observe(n tracking.Notice) {
	switch n.Kind {
	case tracking.NoticeTrackingEvent:
		eventsAppended.WithLabelValues(n.EventType).Inc()
	case tracking.NoticeProductTransferred:
		transfersTotal.Inc()
	}
}

package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Search metrics
	Searches *prometheus.CounterVec // by outcome: "single", "suggestions", "none", "rejected"

	// Delivery metrics
	Deliveries      *prometheus.CounterVec // by result: "delivered", "blocked", "failed"
	DeliveryLatency prometheus.Histogram

	// Room pool metrics
	RoomLeases        *prometheus.CounterVec // by mode: "fresh", "lru_steal"
	JanitorRecoveries prometheus.Counter
}

// InitMetrics registers the Prometheus metrics and returns the holder to
// inject into services. Call once per process.
func InitMetrics() *Metrics {
	return &Metrics{
		Searches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbot_searches_total",
			Help: "Total number of title searches by resolution outcome",
		}, []string{"outcome"}),

		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbot_deliveries_total",
			Help: "Total number of delivery attempts by result",
		}, []string{"result"}),

		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipbot_delivery_duration_seconds",
			Help:    "End-to-end delivery latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60}, // media transfer dominates
		}),

		RoomLeases: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clipbot_room_leases_total",
			Help: "Total number of room leases by acquisition mode",
		}, []string{"mode"}),

		JanitorRecoveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "clipbot_janitor_recoveries_total",
			Help: "Total number of stuck rooms freed by the janitor",
		}),
	}
}

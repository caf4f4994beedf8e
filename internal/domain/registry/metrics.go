package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notification_gateway",
		Name:      "subscribers",
		Help:      "Number of live stream subscribers.",
	})

	deliveredCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification_gateway",
		Name:      "events_delivered_total",
		Help:      "Events enqueued to a subscriber queue.",
	}, []string{"delivery"})

	droppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification_gateway",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber queue was full.",
	}, []string{"delivery"})

	unroutedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notification_gateway",
		Name:      "events_unrouted_total",
		Help:      "Publishes that found no active subscriber.",
	}, []string{"delivery"})
)

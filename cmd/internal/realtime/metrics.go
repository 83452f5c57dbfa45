package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bugtrack_feed_subscribers",
		Help: "Connected bug feed subscribers.",
	})

	publishedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugtrack_feed_events_published_total",
			Help: "Bug feed events published, by type.",
		},
		[]string{"type"},
	)

	droppedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugtrack_feed_events_dropped_total",
			Help: "Bug feed events dropped because a subscriber queue was full.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(subscribersGauge, publishedEvents, droppedEvents)
}

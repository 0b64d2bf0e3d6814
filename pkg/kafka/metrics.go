package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

var (
	// EventsPublished counts events handed to Kafka by topic and outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: TopicPrefix,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Checkout and gift events handed to Kafka, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	// EventsSkipped counts events dropped because publishing is disabled.
	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: TopicPrefix,
			Subsystem: "events",
			Name:      "skipped_total",
			Help:      "Events not sent because EVENTS_ENABLED is off",
		},
		[]string{"topic"},
	)

	// EventPublishDuration observes one synchronous write to the brokers.
	EventPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: TopicPrefix,
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Duration of a Kafka write in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic string, start time.Time, err error) {
	EventPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	outcome := OutcomeSent
	if err != nil {
		outcome = OutcomeFailed
	}
	EventsPublished.WithLabelValues(topic, outcome).Inc()
}

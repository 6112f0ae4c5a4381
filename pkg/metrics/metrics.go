package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesProcessedTotal counts ProcessMessage outcomes by
	// interface/method and reply status code (spec.md §6's status table).
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwn_messages_processed_total",
			Help: "Total number of DWN messages processed by interface, method, and status",
		},
		[]string{"interface", "method", "status"},
	)

	MessageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dwn_message_processing_duration_seconds",
			Help:    "Time taken to process a DWN message, by interface and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"interface", "method"},
	)

	// TasksSweptTotal counts every resumable task handler attempt, by
	// outcome ("success" or "failure") (spec.md §4.9).
	TasksSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dwn_tasks_swept_total",
			Help: "Total number of resumable task handler attempts, by outcome",
		},
		[]string{"outcome"},
	)

	SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dwn_subscriptions_active",
			Help: "Current number of open Records/Subscribe subscriptions",
		},
	)

	EventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dwn_events_published_total",
			Help: "Total number of record writes/deletes fanned out to subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(MessagesProcessedTotal)
	prometheus.MustRegister(MessageProcessingDuration)
	prometheus.MustRegister(TasksSweptTotal)
	prometheus.MustRegister(SubscriptionsActive)
	prometheus.MustRegister(EventsPublishedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

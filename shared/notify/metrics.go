package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	// SentTotal counts deliveries per channel and outcome.
	SentTotal *prometheus.CounterVec

	// QueueSize is the current number of queued notifications.
	QueueSize prometheus.Gauge

	// SendDuration is the time a single delivery attempt takes.
	SendDuration prometheus.Histogram

	// Retries counts retry attempts across all channels.
	Retries prometheus.Counter
}

// NewMetrics creates and registers notification metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total notifications delivered per channel and outcome",
			},
			[]string{"channel", "outcome"},
		),

		QueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifications_queue_size",
				Help:      "Current number of queued notifications",
			},
		),

		SendDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Time to deliver a notification",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),

		Retries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_retries_total",
				Help:      "Total notification retry attempts",
			},
		),
	}
}

// IncSent records a delivery outcome for a channel.
func (m *Metrics) IncSent(channel, outcome string) {
	if m == nil {
		return
	}
	m.SentTotal.WithLabelValues(channel, outcome).Inc()
}

// SetQueueSize records the current queue depth.
func (m *Metrics) SetQueueSize(size int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(size))
}

// ObserveSendDuration records the time a delivery took.
func (m *Metrics) ObserveSendDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SendDuration.Observe(seconds)
}

// IncRetries counts one retry attempt.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

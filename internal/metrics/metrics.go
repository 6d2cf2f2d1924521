package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aptdesk",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by status.",
		},
		[]string{"status"},
	)

	reservationCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aptdesk",
			Name:      "reservation_cancelled_total",
			Help:      "Count of reservations cancelled by residents.",
		},
	)

	admissionRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aptdesk",
			Name:      "admission_rejected_total",
			Help:      "Count of reservation requests refused by admission checks.",
		},
		[]string{"reason"},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aptdesk",
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over reservations.",
		},
		[]string{"decision"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aptdesk",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, reservationCancelled,
			admissionRejected, adminDecision, httpRequests,
		)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncReservationCancelled() {
	reservationCancelled.Inc()
}

func IncAdmissionRejected(reason string) {
	admissionRejected.WithLabelValues(reason).Inc()
}

func IncDecision(decision string) {
	adminDecision.WithLabelValues(decision).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registration flow.
type Metrics struct {
	RegistrationsTotal   prometheus.Counter
	SignInsTotal         prometheus.Counter
	VerificationOutcomes *prometheus.CounterVec
	// ProvisioningOutcomes counts provision calls by outcome:
	// created | partial | deferred | failed.
	ProvisioningOutcomes *prometheus.CounterVec
	PendingExpiredTotal  prometheus.Counter
	EndpointLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tutorbase_registrations_total",
			Help: "Total number of registration submissions accepted",
		}),
		SignInsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tutorbase_signins_total",
			Help: "Total number of successful sign-ins",
		}),
		VerificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorbase_verification_outcomes_total",
			Help: "Verification callback results, labeled by outcome",
		}, []string{"outcome"}),
		ProvisioningOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorbase_provisioning_outcomes_total",
			Help: "Profile provisioning results, labeled by outcome",
		}, []string{"outcome"}),
		PendingExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tutorbase_pending_submissions_expired_total",
			Help: "Pending submissions discarded because they exceeded the TTL",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutorbase_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

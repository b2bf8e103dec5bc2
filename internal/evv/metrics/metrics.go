package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec
	SubmissionsTotal   *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_evv_validations_total",
			Help: "Total EVV validations by state and resulting compliance status",
		}, []string{"state", "status"}),
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebridge_evv_submissions_total",
			Help: "Total aggregator submissions by state, aggregator, and outcome",
		}, []string{"state", "aggregator", "outcome"}),
		SubmissionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carebridge_evv_submission_duration_seconds",
			Help:    "Wall time of the full aggregator fan-out per submission attempt",
			Buckets: prometheus.DefBuckets,
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveValidation(state, status string) {
	m.ValidationsTotal.WithLabelValues(state, status).Inc()
}

func (m *Metrics) ObserveSubmission(state, aggregator string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.SubmissionsTotal.WithLabelValues(state, aggregator, outcome).Inc()
}

func (m *Metrics) ObserveSubmissionDuration(state string, d time.Duration) {
	m.SubmissionDuration.WithLabelValues(state).Observe(d.Seconds())
}

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records submission outcomes.
type Metrics struct {
	submissions     *prometheus.CounterVec
	confirmDuration prometheus.Histogram
	signDuration    prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them on reg when
// it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bundler",
			Subsystem: "pipeline",
			Name:      "submissions_total",
			Help:      "Transactions handled by the submission loop, by outcome.",
		}, []string{"outcome"}),
		confirmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bundler",
			Subsystem: "pipeline",
			Name:      "confirm_duration_seconds",
			Help:      "Time from send to confirmation.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		signDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bundler",
			Subsystem: "pipeline",
			Name:      "sign_duration_seconds",
			Help:      "Time spent in bulk signing.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.confirmDuration, m.signDuration)
	}
	return m
}

const (
	outcomeConfirmed  = "confirmed"
	outcomeFailed     = "failed"
	outcomeNotStarted = "not_attempted"
)

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeConfirm(d time.Duration) {
	if m == nil {
		return
	}
	m.confirmDuration.Observe(d.Seconds())
}

func (m *Metrics) signTimer() func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.signDuration)
	return func() { timer.ObserveDuration() }
}

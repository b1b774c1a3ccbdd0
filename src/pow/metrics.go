package pow

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts proof of work jobs.
type Metrics struct {
	Started   prometheus.Counter
	Completed prometheus.Counter
	Cancelled prometheus.Counter
	Pending   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "pow",
			Name:      "jobs_started_total",
			Help:      "Nonce searches started.",
		}),
		Completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "pow",
			Name:      "jobs_completed_total",
			Help:      "Nonce searches that found a nonce.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "pow",
			Name:      "jobs_cancelled_total",
			Help:      "Nonce searches abandoned before finding a nonce.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "murmur",
			Subsystem: "pow",
			Name:      "jobs_running",
			Help:      "Nonce searches in progress.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Started, m.Completed, m.Cancelled, m.Pending)
	}
	return m
}

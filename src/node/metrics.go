package node

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the activity of a Node to Prometheus.
type Metrics struct {
	Connections     *prometheus.GaugeVec
	PendingRequests prometheus.Gauge
	Requested       prometheus.Counter
	Received        prometheus.Counter
	Rejected        *prometheus.CounterVec
	ProtocolErrors  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "connections",
			Help:      "Connections by state and direction.",
		}, []string{"state", "direction"}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "pending_requests",
			Help:      "Objects requested and not yet received.",
		}),
		Requested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "requested_objects_total",
			Help:      "Inventory vectors sent in getdata messages.",
		}),
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "received_objects_total",
			Help:      "New objects stored after validation.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "rejected_objects_total",
			Help:      "Objects discarded, by reason.",
		}, []string{"reason"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Subsystem: "node",
			Name:      "protocol_errors_total",
			Help:      "Connections closed for a protocol violation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.PendingRequests, m.Requested,
			m.Received, m.Rejected, m.ProtocolErrors)
	}
	return m
}

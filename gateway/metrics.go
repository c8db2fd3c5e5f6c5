package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the gateway's prometheus collectors.
type Metrics struct {
	batchesCreated   prometheus.Counter
	signatures       *prometheus.CounterVec
	batchesCertified prometheus.Counter
	batchesExecuted  prometheus.Counter
	msgsExecuted     prometheus.Counter
	batchesPruned    prometheus.Counter
	failures         *prometheus.CounterVec
	retention        *prometheus.GaugeVec
}

// NewMetrics builds the collectors and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "batches_created_total",
			Help:      "Bottom-up batches opened for signatures.",
		}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "signatures_total",
			Help:      "Validator signatures submitted, by result.",
		}, []string{"result"}),
		batchesCertified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "batches_certified_total",
			Help:      "Bottom-up batches that reached quorum.",
		}),
		batchesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "batches_executed_total",
			Help:      "Certified batches applied.",
		}),
		msgsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "msgs_executed_total",
			Help:      "Cross messages applied from executed batches.",
		}),
		batchesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "batches_pruned_total",
			Help:      "Batches removed below the retention height.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "failures_total",
			Help:      "Rejected operations, by operation and error kind.",
		}, []string{"op", "kind"}),
		retention: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ipc",
			Subsystem: "gateway",
			Name:      "retention_height",
			Help:      "Current retention height per subnet.",
		}, []string{"subnet"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.batchesCreated,
			m.signatures,
			m.batchesCertified,
			m.batchesExecuted,
			m.msgsExecuted,
			m.batchesPruned,
			m.failures,
			m.retention,
		)
	}
	return m
}

func (m *Metrics) failed(op string, err error) {
	m.failures.WithLabelValues(op, KindOf(err).String()).Inc()
}

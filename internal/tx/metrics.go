package tx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/anvil/internal/metrics"
)

// Metrics exports transaction activity to prometheus. A nil *Metrics
// records nothing.
type Metrics struct {
	begun    *prometheus.CounterVec
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewMetrics creates and registers the transaction collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		begun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "begun_total",
			Help:      "Begin calls by propagation and resulting mode",
		}, []string{"propagation", "mode"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "finished_total",
			Help:      "Owning statuses finished, by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "duration_seconds",
			Help:      "Lifetime of owning statuses from begin to finish",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "active",
			Help:      "Owning statuses currently open",
		}),
	}

	if err := metrics.Register(reg, m.begun, m.finished, m.duration, m.active); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordBegin(p Propagation, mode string) {
	if m == nil {
		return
	}
	m.begun.WithLabelValues(p.String(), mode).Inc()
	if mode != modeJoined {
		m.active.Inc()
	}
}

func (m *Metrics) recordFinish(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	m.active.Dec()
}

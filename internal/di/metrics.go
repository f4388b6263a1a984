package di

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/anvil/internal/metrics"
)

// Metrics records container activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	resolutions  *prometheus.CounterVec
	constructed  *prometheus.CounterVec
	construction *prometheus.HistogramVec
	singletons   prometheus.Gauge
}

// NewMetrics creates container collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "resolutions_total",
			Help:      "Component lookups by outcome",
		}, []string{"outcome"}),
		constructed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "constructions_total",
			Help:      "Component instances constructed",
		}, []string{"component", "lifecycle"}),
		construction: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "construction_duration_seconds",
			Help:      "Time spent constructing and injecting a component",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"component"}),
		singletons: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "container",
			Name:      "singletons",
			Help:      "Singleton instances currently cached",
		}),
	}

	if err := metrics.Register(reg, m.resolutions, m.constructed, m.construction, m.singletons); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) resolved(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) built(d *Descriptor, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.constructed.WithLabelValues(d.Name, d.lifecycle()).Inc()
	m.construction.WithLabelValues(d.Name).Observe(elapsed.Seconds())
}

func (m *Metrics) cached(n int) {
	if m == nil {
		return
	}
	m.singletons.Set(float64(n))
}

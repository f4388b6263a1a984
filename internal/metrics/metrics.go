package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/anvil/internal/config"
)

// Registry owns the prometheus registry shared by the container and the
// transaction manager.
type Registry struct {
	config   config.MetricsConfig
	registry *prometheus.Registry
}

// New creates a registry with the Go and process collectors installed.
// A disabled config yields a registry whose Registerer discards everything.
func New(cfg config.MetricsConfig) *Registry {
	r := &Registry{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	if cfg.Enabled {
		r.registry.MustRegister(collectors.NewGoCollector())
		r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return r
}

// Enabled reports whether collectors are exported.
func (r *Registry) Enabled() bool {
	return r.config.Enabled
}

// Namespace is the metric name prefix.
func (r *Registry) Namespace() string {
	return r.config.Namespace
}

// Registerer returns where component collectors should register. It is nil
// when metrics are disabled.
func (r *Registry) Registerer() prometheus.Registerer {
	if !r.config.Enabled {
		return nil
	}
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Path is where Handler should be mounted.
func (r *Registry) Path() string {
	if r.config.Path == "" {
		return "/metrics"
	}
	return r.config.Path
}

// Register registers cs, reusing already registered collectors of the same
// description.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	if reg == nil {
		return nil
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

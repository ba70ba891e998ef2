// Package metrics exposes Prometheus counters for service lifecycle actions
// and delegated plugin calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "svcbackup"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultSkip  = "skipped"
)

// Collector is a prometheus.Collector for the service module.
type Collector struct {
	actions      *prometheus.CounterVec
	pluginCalls  *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_actions_total",
				Help:      "Lifecycle actions applied to services.",
			}, []string{"action", "result"},
		),
		pluginCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_calls_total",
				Help:      "Calls delegated to plugin adapters.",
			}, []string{"plugin", "method", "result"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plugin_call_duration_seconds",
				Help:      "Duration of plugin adapter calls.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			}, []string{"plugin"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.actions.Describe(ch)
	c.pluginCalls.Describe(ch)
	c.callDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.actions.Collect(ch)
	c.pluginCalls.Collect(ch)
	c.callDuration.Collect(ch)
}

// ObserveAction counts a lifecycle action.
func (c *Collector) ObserveAction(action string, err error) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(action, result(err)).Inc()
}

// ObservePluginCall counts an adapter call and records its duration.
func (c *Collector) ObservePluginCall(plugin, method, res string, d time.Duration) {
	if c == nil {
		return
	}
	c.pluginCalls.WithLabelValues(plugin, method, res).Inc()
	c.callDuration.WithLabelValues(plugin).Observe(d.Seconds())
}

// ActionCounter returns the counter for one action/result pair.
func (c *Collector) ActionCounter(action, res string) prometheus.Counter {
	return c.actions.WithLabelValues(action, res)
}

// PluginCallCounter returns the counter for one plugin/method/result triple.
func (c *Collector) PluginCallCounter(plugin, method, res string) prometheus.Counter {
	return c.pluginCalls.WithLabelValues(plugin, method, res)
}

// NewRegistry returns a registry holding c plus the Go runtime and process
// collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

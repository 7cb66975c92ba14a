// Package metrics exposes Prometheus instruments for model and tool calls,
// session store mutations, run durations and HTTP requests. Every method is
// safe on a nil *Metrics, so components can take an optional collector.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registry and instruments.
type Metrics struct {
	registry *prometheus.Registry

	ModelCallsTotal     *prometheus.CounterVec
	ToolCallsTotal      *prometheus.CounterVec
	StoreMutationsTotal *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates and registers all instruments on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agno_model_calls_total",
				Help: "Total number of model calls",
			},
			[]string{"model", "status"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agno_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "outcome"},
		),
		StoreMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agno_store_mutations_total",
				Help: "Total number of session store mutations",
			},
			[]string{"op", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agno_run_duration_seconds",
				Help:    "Duration of agent and team runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"owner"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agno_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agno_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.ModelCallsTotal,
		m.ToolCallsTotal,
		m.StoreMutationsTotal,
		m.RunDuration,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveModelCall counts one model call.
func (m *Metrics) ObserveModelCall(model string, err error) {
	if m == nil {
		return
	}

	m.ModelCallsTotal.WithLabelValues(model, status(err)).Inc()
}

// ObserveToolCall counts one tool call.
func (m *Metrics) ObserveToolCall(tool string, err error) {
	if m == nil {
		return
	}

	m.ToolCallsTotal.WithLabelValues(tool, status(err)).Inc()
}

// ObserveStoreMutation implements state.MutationObserver.
func (m *Metrics) ObserveStoreMutation(op, outcome string) {
	if m == nil {
		return
	}

	m.StoreMutationsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveRun records the duration of a run.
func (m *Metrics) ObserveRun(owner string, d time.Duration) {
	if m == nil {
		return
	}

	m.RunDuration.WithLabelValues(owner).Observe(d.Seconds())
}

// ObserveHTTPRequest records one served request. Route is the router
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}

	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

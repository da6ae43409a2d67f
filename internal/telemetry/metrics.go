// Package telemetry holds the host's Prometheus counters. They live on a
// private registry and are only exposed through the loopback server.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	BridgeCalls         *prometheus.CounterVec
	NavigationDecisions *prometheus.CounterVec
	ContentLoads        *prometheus.CounterVec
	WindowsCreated      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BridgeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhost_bridge_calls_total",
				Help: "Bridge invocations by channel and result",
			},
			[]string{"channel", "result"},
		),
		NavigationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhost_navigation_decisions_total",
				Help: "Window-open and navigation decisions by hook and outcome",
			},
			[]string{"hook", "decision"},
		),
		ContentLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskhost_content_loads_total",
				Help: "Window content loads by source and result",
			},
			[]string{"source", "result"},
		),
		WindowsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deskhost_windows_created_total",
				Help: "Windows created since process start",
			},
		),
	}

	m.registry.MustRegister(
		m.BridgeCalls,
		m.NavigationDecisions,
		m.ContentLoads,
		m.WindowsCreated,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) BridgeCall(channel, result string) {
	if m == nil {
		return
	}
	m.BridgeCalls.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) Navigation(hook, decision string) {
	if m == nil {
		return
	}
	m.NavigationDecisions.WithLabelValues(hook, decision).Inc()
}

func (m *Metrics) ContentLoad(source, result string) {
	if m == nil {
		return
	}
	m.ContentLoads.WithLabelValues(source, result).Inc()
}

func (m *Metrics) WindowCreated() {
	if m == nil {
		return
	}
	m.WindowsCreated.Inc()
}

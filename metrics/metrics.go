// Package metrics exposes prometheus collectors for graph runs.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	m := metrics.New(registry)
//	driver := runner.New(..., func(o *runner.Options) { o.Metrics = m })
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without guarding every call.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentgraph"

// Metrics bundles the collectors recorded by the runner, executor, tool node and cache.
type Metrics struct {
	runs         *prometheus.CounterVec
	events       *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed run turns by outcome (completed, interrupted, stopped, error).",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Streamed events by type.",
		}, []string{"type"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and status (ok, error, dropped).",
		}, []string{"tool", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toolcache_lookups_total",
			Help:      "Personal tool cache lookups by result (hit, miss).",
		}, []string{"result"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node"}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.events, m.toolCalls, m.cacheLookups, m.nodeDuration)
	}

	return m
}

// RunFinished counts a finished run turn.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// EventEmitted counts a streamed event.
func (m *Metrics) EventEmitted(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// ToolCalled counts a tool invocation.
func (m *Metrics) ToolCalled(tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// CacheLookup counts a tool cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveNode records how long a node took.
func (m *Metrics) ObserveNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// Package metrics exposes Prometheus collectors for execution and node
// outcomes, registered against a private registry so the process's
// /metrics surface carries only engine-owned series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the counters and histograms the executor reports against.
// A nil *Collector is valid everywhere it's accepted: every method is a
// no-op on a nil receiver so instrumentation is opt-in.
type Collector struct {
	executionsTotal  *prometheus.CounterVec
	executionSeconds *prometheus.HistogramVec
	nodesTotal       *prometheus.CounterVec
	nodeSeconds      *prometheus.HistogramVec
}

// New builds a Collector and registers its series against reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowforge",
			Name:      "executions_total",
			Help:      "Workflow executions by terminal status.",
		}, []string{"status"}),
		executionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowforge",
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of a workflow execution, by terminal status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowforge",
			Name:      "node_executions_total",
			Help:      "Node executions by node type and terminal status.",
		}, []string{"node_type", "status"}),
		nodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowforge",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of a single node execution, by node type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
	}
	reg.MustRegister(c.executionsTotal, c.executionSeconds, c.nodesTotal, c.nodeSeconds)
	return c
}

// ObserveNode records one node execution's outcome and duration.
func (c *Collector) ObserveNode(nodeType, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.nodesTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeSeconds.WithLabelValues(nodeType).Observe(d.Seconds())
}

// ObserveExecution records one workflow execution's terminal outcome and
// total duration.
func (c *Collector) ObserveExecution(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(status).Inc()
	c.executionSeconds.WithLabelValues(status).Observe(d.Seconds())
}

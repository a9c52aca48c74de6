package workflow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection for
// workflow execution monitoring, wired in via WithMetrics. All metrics are
// namespaced "agentengine".
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	frontierDepth prometheus.Gauge

	stepLatency *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	toolCalls   *prometheus.CounterVec
	branches    *prometheus.CounterVec
	cancellations prometheus.Counter

	registry prometheus.Registerer
	mu       sync.RWMutex
	enabled  bool
}

// NewPrometheusMetrics registers the engine's metrics with registry (use
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for per-test isolation).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{registry: registry, enabled: true}

	pm.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentengine",
		Name:      "inflight_nodes",
		Help:      "Current number of nodes being dispatched by the traversal driver",
	})
	pm.frontierDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentengine",
		Name:      "frontier_depth",
		Help:      "Current number of nodes queued in the traversal frontier",
	})
	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentengine",
		Name:      "node_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"run_id", "node_id", "node_type", "status"})
	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentengine",
		Name:      "retries_total",
		Help:      "Cumulative count of node retry attempts",
	}, []string{"run_id", "node_id", "reason"})
	pm.toolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentengine",
		Name:      "tool_calls_total",
		Help:      "Cumulative count of tool invocations, by tool id and outcome",
	}, []string{"tool_id", "status"})
	pm.branches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentengine",
		Name:      "parallel_branches_total",
		Help:      "Cumulative count of parallel branch completions, by outcome",
	}, []string{"node_id", "status"}) // status: ok, timeout, error
	pm.cancellations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "agentengine",
		Name:      "cancellations_total",
		Help:      "Cumulative count of runs that ended via cancellation",
	})

	return pm
}

// RecordNodeLatency records a single node dispatch's duration and outcome.
func (pm *PrometheusMetrics) RecordNodeLatency(runID, nodeID, nodeType string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stepLatency.WithLabelValues(runID, nodeID, nodeType, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries records one retry attempt for nodeID.
func (pm *PrometheusMetrics) IncrementRetries(runID, nodeID, reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.retries.WithLabelValues(runID, nodeID, reason).Inc()
}

// IncrementToolCalls records one tool invocation outcome.
func (pm *PrometheusMetrics) IncrementToolCalls(toolID, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.toolCalls.WithLabelValues(toolID, status).Inc()
}

// IncrementBranchCompletion records one parallel branch's terminal outcome.
func (pm *PrometheusMetrics) IncrementBranchCompletion(nodeID, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.branches.WithLabelValues(nodeID, status).Inc()
}

// IncrementCancellations records one cancelled run.
func (pm *PrometheusMetrics) IncrementCancellations() {
	if !pm.isEnabled() {
		return
	}
	pm.cancellations.Inc()
}

// UpdateFrontierDepth sets the current frontier size gauge.
func (pm *PrometheusMetrics) UpdateFrontierDepth(depth int) {
	if !pm.isEnabled() {
		return
	}
	pm.frontierDepth.Set(float64(depth))
}

// UpdateInflightNodes sets the current in-dispatch gauge.
func (pm *PrometheusMetrics) UpdateInflightNodes(count int) {
	if !pm.isEnabled() {
		return
	}
	pm.inflightNodes.Set(float64(count))
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// Disable stops metric recording (useful for tests sharing a registry).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

package workflow

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherMetrics(t *testing.T, registry *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestPrometheusMetricsExposed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	metrics.RecordNodeLatency("run-1", "agentA", "agent", 42*time.Millisecond, "ok")
	metrics.IncrementRetries("run-1", "agentA", "timeout")
	metrics.IncrementToolCalls("search", "ok")
	metrics.IncrementBranchCompletion("fanout", "ok")
	metrics.IncrementCancellations()
	metrics.UpdateFrontierDepth(3)
	metrics.UpdateInflightNodes(1)

	families := gatherMetrics(t, registry)

	for _, name := range []string{
		"agentengine_node_latency_ms",
		"agentengine_retries_total",
		"agentengine_tool_calls_total",
		"agentengine_parallel_branches_total",
		"agentengine_cancellations_total",
		"agentengine_frontier_depth",
		"agentengine_inflight_nodes",
	} {
		if _, ok := families[name]; !ok {
			t.Errorf("expected metric %s to be registered", name)
		}
	}

	latency, ok := families["agentengine_node_latency_ms"]
	if !ok {
		t.Fatal("node_latency_ms missing")
	}
	if latency.GetType() != dto.MetricType_HISTOGRAM {
		t.Errorf("node_latency_ms should be a histogram, got %v", latency.GetType())
	}
	var sampleCount uint64
	for _, m := range latency.GetMetric() {
		sampleCount += m.GetHistogram().GetSampleCount()
	}
	if sampleCount == 0 {
		t.Error("node_latency_ms has no observations")
	}

	inflight := families["agentengine_inflight_nodes"]
	if inflight.GetType() != dto.MetricType_GAUGE {
		t.Errorf("inflight_nodes should be a gauge, got %v", inflight.GetType())
	}
	if got := inflight.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("inflight_nodes = %v, want 1", got)
	}
}

func TestPrometheusMetricsDisableStopsRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	metrics.Disable()
	metrics.IncrementCancellations()
	metrics.UpdateInflightNodes(5)

	families := gatherMetrics(t, registry)
	inflight, ok := families["agentengine_inflight_nodes"]
	if !ok {
		t.Fatal("inflight_nodes missing")
	}
	if got := inflight.GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("inflight_nodes = %v after Disable, want 0 (unchanged)", got)
	}

	metrics.Enable()
	metrics.UpdateInflightNodes(5)
	families = gatherMetrics(t, registry)
	inflight = families["agentengine_inflight_nodes"]
	if got := inflight.GetMetric()[0].GetGauge().GetValue(); got != 5 {
		t.Errorf("inflight_nodes = %v after Enable, want 5", got)
	}
}

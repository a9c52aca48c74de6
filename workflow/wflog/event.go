// Package wflog provides observability event emission for workflow runs,
// independent of the driver's typed Callbacks — the Adapter turns the node
// start/finish/error, route, branch start/complete and store-error callbacks
// into generic Events a logging, tracing, or buffering backend can consume
// without knowing about node kinds. Token, reasoning, branch-token and HITL
// callbacks are not turned into Events.
package wflog

// Event is one observability event emitted during a workflow run.
type Event struct {
	// RunID identifies the workflow run that emitted this event.
	RunID string

	// Step is the sequential dispatch step (1-indexed). Zero for run-level
	// events (run_start, run_complete, run_error).
	Step int

	// NodeID identifies which node emitted this event. Empty for run-level
	// events. For parallel branches this is "parallelNodeID/branchID".
	NodeID string

	// Msg is a short event kind, e.g. "node_start", "node_end", "retry",
	// "route_selected", "branch_complete", "tool_call".
	Msg string

	// Meta carries event-specific structured data. Common keys: "duration_ms",
	// "error", "tokens_in", "tokens_out", "cost_usd", "model", "handle_id".
	Meta map[string]interface{}
}

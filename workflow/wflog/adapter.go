package wflog

import "github.com/graphrun/agentengine/workflow"

// Adapter turns an Emitter into a workflow.Callbacks value, so any backend
// built against the Event/Emitter model (log lines, OTel spans, in-memory
// history) can observe a run without the driver or executors knowing
// anything about wflog.
type Adapter struct {
	RunID   string
	Emitter Emitter
	step    int
}

// NewAdapter builds an Adapter emitting events tagged with runID to emitter.
func NewAdapter(runID string, emitter Emitter) *Adapter {
	return &Adapter{RunID: runID, Emitter: emitter}
}

// Callbacks returns a workflow.Callbacks wired to emit through a.
func (a *Adapter) Callbacks() workflow.Callbacks {
	return workflow.Callbacks{
		OnNodeStart: func(nodeID string, info workflow.NodeInfo) {
			a.step++
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: nodeID,
				Msg:    "node_start",
				Meta:   map[string]interface{}{"type": info.Type, "label": info.Label},
			})
		},
		OnNodeFinish: func(nodeID, output string, meta map[string]any) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: nodeID,
				Msg:    "node_end",
				Meta:   mergeMeta(meta, "output", output),
			})
		},
		OnNodeError: func(nodeID string, err *workflow.EngineError) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: nodeID,
				Msg:    "node_error",
				Meta: map[string]interface{}{
					"error": err.Error(),
					"code":  err.Code,
				},
			})
		},
		OnRouteSelected: func(nodeID, handleID string, fallback bool) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: nodeID,
				Msg:    "route_selected",
				Meta:   map[string]interface{}{"handle_id": handleID, "fallback": fallback},
			})
		},
		OnBranchStart: func(parallelNodeID, branchID, label string) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: parallelNodeID + "/" + branchID,
				Msg:    "branch_start",
				Meta:   map[string]interface{}{"label": label},
			})
		},
		OnBranchComplete: func(parallelNodeID, branchID, label, output string) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: parallelNodeID + "/" + branchID,
				Msg:    "branch_complete",
				Meta:   map[string]interface{}{"label": label, "output": output},
			})
		},
		OnStoreError: func(nodeID string, err error) {
			a.Emitter.Emit(Event{
				RunID:  a.RunID,
				Step:   a.step,
				NodeID: nodeID,
				Msg:    "store_error",
				Meta:   map[string]interface{}{"error": err.Error()},
			})
		},
	}
}

func mergeMeta(meta map[string]any, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = value
	return out
}

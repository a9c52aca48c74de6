package workflow

import "testing"

func TestCallbacksNilHooksDoNotPanic(t *testing.T) {
	var c Callbacks
	c.nodeStart("n1", NodeInfo{ID: "n1"})
	c.nodeFinish("n1", "out", nil)
	c.nodeError("n1", &EngineError{Code: CodeUnknown})
	c.token("n1", "tok")
	c.reasoning("n1", "tok")
	c.routeSelected("n1", "h1", false)
	c.branchStart("p1", "b1", "label")
	c.branchToken("p1", "b1", "tok")
	c.branchComplete("p1", "b1", "label", "out")
	c.storeError("n1", nil)
	if _, handled := c.hitl(HITLRequest{NodeID: "n1"}); handled {
		t.Error("expected hitl to report unhandled when OnHITLRequest is nil")
	}
}

func TestCallbacksInvokesConfiguredHooks(t *testing.T) {
	var started, finished bool
	c := Callbacks{
		OnNodeStart:  func(nodeID string, info NodeInfo) { started = true },
		OnNodeFinish: func(nodeID, output string, meta map[string]any) { finished = true },
	}
	c.nodeStart("n1", NodeInfo{ID: "n1"})
	c.nodeFinish("n1", "done", nil)

	if !started || !finished {
		t.Errorf("started=%v finished=%v, want both true", started, finished)
	}
}

func TestCallbacksHITLReturnsResponseWhenHandled(t *testing.T) {
	c := Callbacks{
		OnHITLRequest: func(req HITLRequest) HITLResponse {
			return HITLResponse{Approved: true, Comment: "ok"}
		},
	}
	resp, handled := c.hitl(HITLRequest{NodeID: "n1"})
	if !handled || !resp.Approved || resp.Comment != "ok" {
		t.Errorf("hitl() = %+v, %v; want Approved response handled=true", resp, handled)
	}
}

func TestAccumulatingCallbacksResolvesNodeInfoFromIndex(t *testing.T) {
	wf := &Workflow{Nodes: []Node{
		{ID: "n1", Type: NodeAgent, Data: rawData(t, AgentData{Label: "classifier"})},
	}}
	idx := NewGraphIndex(wf)

	var gotInfo NodeInfo
	ac := NewAccumulatingCallbacks(idx, Callbacks{
		OnNodeStart: func(nodeID string, info NodeInfo) { gotInfo = info },
	})

	ac.Callbacks().nodeStart("n1", NodeInfo{})

	if gotInfo.Label != "classifier" || gotInfo.Type != NodeAgent {
		t.Errorf("gotInfo = %+v, want Label=classifier Type=agent", gotInfo)
	}
}

func TestAccumulatingCallbacksUnknownNodeFallsBackToID(t *testing.T) {
	idx := NewGraphIndex(&Workflow{})

	var gotInfo NodeInfo
	ac := NewAccumulatingCallbacks(idx, Callbacks{
		OnNodeStart: func(nodeID string, info NodeInfo) { gotInfo = info },
	})
	ac.Callbacks().nodeStart("ghost", NodeInfo{})

	if gotInfo.Label != "ghost" || gotInfo.Type != "unknown" {
		t.Errorf("gotInfo = %+v, want Label=ghost Type=unknown", gotInfo)
	}
}

func TestNodeLabelReturnsEmptyForUnknownType(t *testing.T) {
	n := &Node{ID: "n1", Type: "mystery"}
	if got := nodeLabel(n); got != "" {
		t.Errorf("nodeLabel() = %q, want empty for unrecognized type", got)
	}
}

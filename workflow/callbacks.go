package workflow

import "sync"

// Callbacks is the typed event sink driven by the traversal driver and by
// executors that spawn their own concurrency (the parallel executor). Every
// hook is optional; a nil hook is simply not invoked.
//
// Implementations do not need their own synchronization for a given
// nodeID/branchId sequence — the engine guarantees that the *sequence* of
// calls for one nodeID (or one (parallelNodeID, branchId) pair) is strictly
// ordered, and that concurrent calls from different parallel branches are
// individually atomic (§4.12, §5). A Callbacks value may still be invoked
// concurrently across distinct branches, so implementations that mutate
// shared state (counters, buffers) must guard it themselves.
type Callbacks struct {
	OnNodeStart     func(nodeID string, info NodeInfo)
	OnNodeFinish    func(nodeID string, output string, meta map[string]any)
	OnNodeError     func(nodeID string, err *EngineError)
	OnToken         func(nodeID string, token string)
	OnReasoning     func(nodeID string, token string)
	OnRouteSelected func(nodeID string, handleID string, fallback bool)
	OnBranchStart   func(parallelNodeID, branchID, label string)
	OnBranchToken   func(parallelNodeID, branchID, token string)
	OnBranchComplete func(parallelNodeID, branchID, label, output string)
	OnHITLRequest   func(req HITLRequest) HITLResponse
	OnStoreError    func(nodeID string, err error)
}

// HITLRequest describes a pause point awaiting a human decision (§4.5, GLOSSARY).
type HITLRequest struct {
	NodeID  string
	Mode    string // "approval"
	Context map[string]any
}

// HITLResponse is the human's decision for a HITLRequest.
type HITLResponse struct {
	Approved bool
	Comment  string
}

func (c Callbacks) nodeStart(nodeID string, info NodeInfo) {
	if c.OnNodeStart != nil {
		c.OnNodeStart(nodeID, info)
	}
}

func (c Callbacks) nodeFinish(nodeID, output string, meta map[string]any) {
	if c.OnNodeFinish != nil {
		c.OnNodeFinish(nodeID, output, meta)
	}
}

func (c Callbacks) nodeError(nodeID string, err *EngineError) {
	if c.OnNodeError != nil {
		c.OnNodeError(nodeID, err)
	}
}

func (c Callbacks) token(nodeID, token string) {
	if c.OnToken != nil {
		c.OnToken(nodeID, token)
	}
}

func (c Callbacks) reasoning(nodeID, token string) {
	if c.OnReasoning != nil {
		c.OnReasoning(nodeID, token)
	}
}

func (c Callbacks) routeSelected(nodeID, handleID string, fallback bool) {
	if c.OnRouteSelected != nil {
		c.OnRouteSelected(nodeID, handleID, fallback)
	}
}

func (c Callbacks) branchStart(parallelNodeID, branchID, label string) {
	if c.OnBranchStart != nil {
		c.OnBranchStart(parallelNodeID, branchID, label)
	}
}

func (c Callbacks) branchToken(parallelNodeID, branchID, token string) {
	if c.OnBranchToken != nil {
		c.OnBranchToken(parallelNodeID, branchID, token)
	}
}

func (c Callbacks) branchComplete(parallelNodeID, branchID, label, output string) {
	if c.OnBranchComplete != nil {
		c.OnBranchComplete(parallelNodeID, branchID, label, output)
	}
}

func (c Callbacks) hitl(req HITLRequest) (HITLResponse, bool) {
	if c.OnHITLRequest == nil {
		return HITLResponse{}, false
	}
	return c.OnHITLRequest(req), true
}

func (c Callbacks) storeError(nodeID string, err error) {
	if c.OnStoreError != nil {
		c.OnStoreError(nodeID, err)
	}
}

// AccumulatingCallbacks wraps a Callbacks so that OnNodeStart receives a
// NodeInfo with (nodeID, label, type) resolved from the workflow's node list,
// for consumers who don't want to look nodes up themselves (§4.12, §9). The
// other hooks are passed through to Inner unchanged and carry only the ids
// in their own signatures.
// Unknown node ids yield (id, id, "unknown"); non-string labels (there are
// none in this static schema, but the rule is kept for symmetry with the
// original design) fall back to the node id.
type AccumulatingCallbacks struct {
	mu     sync.RWMutex
	index  *GraphIndex
	Inner  Callbacks
	Enrich func(nodeID string, info NodeInfo)
}

// NewAccumulatingCallbacks builds an adapter resolving labels/types from idx.
func NewAccumulatingCallbacks(idx *GraphIndex, inner Callbacks) *AccumulatingCallbacks {
	return &AccumulatingCallbacks{index: idx, Inner: inner}
}

func (a *AccumulatingCallbacks) resolve(nodeID string) NodeInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.index != nil {
		if n, ok := a.index.GetNode(nodeID); ok {
			label := nodeLabel(n)
			if label == "" {
				label = n.ID
			}
			return NodeInfo{ID: n.ID, Label: label, Type: n.Type}
		}
	}
	return NodeInfo{ID: nodeID, Label: nodeID, Type: "unknown"}
}

// Callbacks returns a Callbacks value delegating to Inner with NodeInfo
// enrichment applied to OnNodeStart.
func (a *AccumulatingCallbacks) Callbacks() Callbacks {
	cb := a.Inner
	original := cb.OnNodeStart
	cb.OnNodeStart = func(nodeID string, info NodeInfo) {
		resolved := a.resolve(nodeID)
		if info.Label != "" {
			resolved.Label = info.Label
		}
		if info.Type != "" {
			resolved.Type = info.Type
		}
		if original != nil {
			original(nodeID, resolved)
		}
	}
	return cb
}

func nodeLabel(n *Node) string {
	switch n.Type {
	case NodeStart:
		d, _ := decode[StartData](n.Data)
		return d.Label
	case NodeAgent:
		d, _ := decode[AgentData](n.Data)
		return d.Label
	case NodeRouter:
		d, _ := decode[RouterData](n.Data)
		return d.Label
	case NodeParallel:
		d, _ := decode[ParallelData](n.Data)
		return d.Label
	case NodeWhileLoop:
		d, _ := decode[WhileLoopData](n.Data)
		return d.Label
	case NodeTool:
		d, _ := decode[ToolData](n.Data)
		return d.Label
	case NodeMemory:
		d, _ := decode[MemoryData](n.Data)
		return d.Label
	case NodeSubflow:
		d, _ := decode[SubflowData](n.Data)
		return d.Label
	case NodeOutput:
		d, _ := decode[OutputData](n.Data)
		return d.Label
	default:
		return ""
	}
}

package workflow

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Driver owns the executor registry and drives the traversal state machine
// (C4, §4.4): INIT → READY → DISPATCHING → COMPLETE / FAILED / CANCELLED.
// The driver itself is strictly single-threaded; all concurrency is confined
// to executors (the parallel executor) per §5.
type Driver struct {
	registry *Registry
}

// NewDriver builds a Driver with the nine built-in executors registered,
// plus any extra/override executors supplied by the host.
func NewDriver(extra ...Executor) *Driver {
	d := &Driver{}
	reg := NewRegistry(
		startExecutor{},
		agentExecutor{},
		routerExecutor{},
		parallelExecutor{},
		whileLoopExecutor{driver: d},
		toolExecutor{},
		memoryExecutor{},
		subflowExecutor{driver: d},
		outputExecutor{},
	)
	for _, e := range extra {
		reg.Register(e)
	}
	d.registry = reg
	return d
}

// Registry exposes the driver's executor registry, e.g. for callers that
// need to run Validate (or the loader package) against the same executor
// set the driver dispatches with.
func (d *Driver) Registry() *Registry {
	return d.registry
}

// Execute runs wf against input, delivering events to callbacks, and returns
// once the run reaches COMPLETE, FAILED, or CANCELLED (§6 "engine entry
// point").
func (d *Driver) Execute(ctx context.Context, wf *Workflow, input Input, callbacks Callbacks, opts ...Option) ExecutionResult {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	resolved := resolve(o)

	if resolved.Preflight {
		issues := Validate(wf, d.registry)
		if HasErrors(issues) {
			return ExecutionResult{
				Success: false,
				Error:   firstIssueAsError(issues),
				Outputs: map[string]string{},
			}
		}
	}

	idx := NewGraphIndex(wf)
	if _, ok := idx.StartNode(); !ok {
		return ExecutionResult{
			Success: false,
			Error:   &EngineError{Code: CodeNoStartNode, Message: "workflow has no start node"},
			Outputs: map[string]string{},
		}
	}

	sessionID := o.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ec := &ExecContext{
		Input:            input,
		Outputs:          make(map[string]string),
		ExecCount:        make(map[string]int),
		SessionID:        sessionID,
		Tools:            o.Tools,
		Memory:           o.Memory,
		Models:           o.Models,
		DefaultModel:     resolved.DefaultModel,
		Subflows:         o.SubflowRegistry,
		CustomEvaluators: o.CustomEvaluators,
		Callbacks:        callbacks,
		Compaction:       o.Compaction,
		Options:          resolved,
		RNG:              rand.New(rand.NewSource(seedFromSessionID(sessionID))),
		idx:              idx,
		cancel:           newCancelToken(),
	}

	result := d.run(ctx, idx, ec)
	return result
}

func (d *Driver) run(ctx context.Context, idx *GraphIndex, ec *ExecContext) ExecutionResult {
	startNode, _ := idx.StartNode()
	frontier := []string{startNode.ID}

	var lastOutput string
	globalSteps := 0

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			ec.Cancel()
		}
		if ec.Cancelled() {
			if m := ec.Options.Metrics; m != nil {
				m.IncrementCancellations()
			}
			return d.terminal(ec, false, lastOutput, &EngineError{Code: CodeCancelled, Message: ErrCancelled.Error()})
		}

		nodeID := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		node, ok := idx.GetNode(nodeID)
		if !ok {
			continue
		}

		execCount := ec.incrExecCount(nodeID)
		if execCount > ec.Options.MaxNodeExecutions {
			return d.terminal(ec, false, lastOutput, &EngineError{
				Code: CodeNodeCapExceeded, NodeID: nodeID,
				Message: "node exceeded maximum execution count",
			})
		}

		globalSteps++
		if globalSteps > ec.Options.MaxIterations {
			return d.terminal(ec, false, lastOutput, &EngineError{
				Code: CodeGlobalCapExceeded, Message: "global iteration cap exceeded",
			})
		}

		ec.appendChain(nodeID)
		exec, _ := d.registry.Lookup(node.Type)
		info := NodeInfo{ID: node.ID, Label: nodeLabel(node), Type: node.Type}
		if info.Label == "" {
			info.Label = node.ID
		}
		ec.Callbacks.nodeStart(nodeID, info)

		errHandling := errorHandlingFor(node)

		dispatchStart := time.Now()
		result, retryInfo := runWithRetry(ec, errHandling, func(attempt int) Result {
			return exec.Execute(ctx, ec, node)
		})
		dispatchLatency := time.Since(dispatchStart)

		if m := ec.Options.Metrics; m != nil {
			status := "ok"
			if result.Err != nil {
				status = "error"
			}
			m.RecordNodeLatency(ec.SessionID, nodeID, node.Type, dispatchLatency, status)
			for _, attempt := range retryHistory(retryInfo) {
				m.IncrementRetries(ec.SessionID, nodeID, classifyError(attempt.Error))
			}
			m.UpdateFrontierDepth(len(frontier))
		}

		if result.Err == nil {
			ec.recordOutput(nodeID, node.Type, result.Output)
			lastOutput = result.Output
			ec.Callbacks.nodeFinish(nodeID, result.Output, result.Metadata)
			recordStep(ctx, ec, globalSteps, nodeID)

			successors := d.successorsFor(idx, node, result)
			frontier = pushDFS(frontier, successors)
			continue
		}

		// Err path.
		engErr := &EngineError{
			Code: result.Err.Code, Message: result.Err.Message, NodeID: nodeID,
			Cause: result.Err.Cause,
		}
		if retryInfo != nil {
			engErr.Retry = retryInfo
		}

		if result.Err.Code == CodeCancelled {
			return d.terminal(ec, false, lastOutput, engErr)
		}

		mode := ModeStop
		if errHandling != nil && errHandling.Mode != "" {
			mode = errHandling.Mode
		}

		ec.Callbacks.nodeError(nodeID, engErr)

		switch mode {
		case ModeBranch:
			if idx.HasOutgoing(nodeID, ErrorHandle) {
				frontier = pushDFS(frontier, idx.OutgoingOnHandle(nodeID, ErrorHandle))
				continue
			}
			return d.terminal(ec, false, lastOutput, engErr)

		case ModeContinue:
			ec.recordOutput(nodeID, node.Type, "")
			lastOutput = ""
			frontier = pushDFS(frontier, idx.OutgoingOnHandle(nodeID, DefaultHandle))
			continue

		default: // ModeStop
			return d.terminal(ec, false, lastOutput, engErr)
		}
	}

	return d.terminal(ec, true, lastOutput, nil)
}

func (d *Driver) terminal(ec *ExecContext, success bool, output string, engErr *EngineError) ExecutionResult {
	return ExecutionResult{
		Success:   success,
		Output:    output,
		Error:     engErr,
		Outputs:   ec.snapshotOutputs(),
		NodeChain: append([]string(nil), ec.NodeChain...),
	}
}

// successorsFor computes the outgoing edges to follow after a successful
// executor call (§4.4 step 3e): routeHint selects a handle; absence of a
// hint uses the default handle, except a parallel node which already fanned
// out internally and so follows all outgoing edges.
func (d *Driver) successorsFor(idx *GraphIndex, node *Node, result Result) []*Edge {
	if result.RouteHint != "" {
		return idx.OutgoingOnHandle(node.ID, result.RouteHint)
	}
	if node.Type == NodeParallel {
		return idx.Outgoing(node.ID)
	}
	return idx.OutgoingOnHandle(node.ID, DefaultHandle)
}

// pushDFS pushes successor node ids onto the stack-shaped frontier so that
// the first-declared edge is explored (with its full subtree) before later
// siblings, matching the DFS tie-break rule of §4.4.
func pushDFS(frontier []string, edges []*Edge) []string {
	for i := len(edges) - 1; i >= 0; i-- {
		frontier = append(frontier, edges[i].Target)
	}
	return frontier
}

func errorHandlingFor(node *Node) *ErrorHandling {
	switch node.Type {
	case NodeAgent:
		d, _ := decode[AgentData](node.Data)
		return d.ErrorHandling
	case NodeTool:
		d, _ := decode[ToolData](node.Data)
		return d.ErrorHandling
	default:
		return nil
	}
}

func firstIssueAsError(issues []ValidationIssue) *EngineError {
	for _, i := range issues {
		if i.Type == IssueError {
			return &EngineError{Code: i.Code, Message: i.Message, NodeID: i.NodeID}
		}
	}
	return nil
}

func retryHistory(info *RetryInfo) []RetryAttempt {
	if info == nil {
		return nil
	}
	return info.History
}

func seedFromSessionID(sessionID string) int64 {
	var seed int64
	for _, c := range sessionID {
		seed = seed*31 + int64(c)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return seed
}

// executeBody runs a nested traversal bounded to the whileLoop node's body
// subgraph (reachable from its "body" handle without crossing back to the
// loop node), feeding currentInput as this iteration's input, and returns
// the subgraph's terminal output (§4.8 step 3).
func (d *Driver) executeBody(ctx context.Context, ec *ExecContext, loopNodeID, currentInput string) (string, error) {
	idx := ec.idx
	bodyEdges := idx.OutgoingOnHandle(loopNodeID, "body")
	if len(bodyEdges) == 0 {
		return currentInput, nil
	}

	bodyStart := make([]string, 0, len(bodyEdges))
	for _, e := range bodyEdges {
		bodyStart = append(bodyStart, e.Target)
	}
	reachable := idx.reachableFrom(bodyStart...)

	savedInput := ec.Input
	ec.Input = Input{Text: currentInput}
	defer func() { ec.Input = savedInput }()

	frontier := pushDFS(nil, bodyEdges)
	var lastOutput = currentInput

	for len(frontier) > 0 {
		if ec.Cancelled() {
			return lastOutput, ErrCancelled
		}
		nodeID := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if !reachable[nodeID] || nodeID == loopNodeID {
			continue
		}

		node, ok := idx.GetNode(nodeID)
		if !ok {
			continue
		}

		execCount := ec.incrExecCount(nodeID)
		if execCount > ec.Options.MaxNodeExecutions {
			return lastOutput, &ExecError{Code: CodeNodeCapExceeded, Message: "node exceeded maximum execution count"}
		}

		ec.appendChain(nodeID)
		exec, _ := d.registry.Lookup(node.Type)
		info := NodeInfo{ID: node.ID, Label: nodeLabel(node), Type: node.Type}
		if info.Label == "" {
			info.Label = node.ID
		}
		ec.Callbacks.nodeStart(nodeID, info)

		errHandling := errorHandlingFor(node)
		result, _ := runWithRetry(ec, errHandling, func(attempt int) Result {
			return exec.Execute(ctx, ec, node)
		})

		if result.Err != nil {
			ec.Callbacks.nodeError(nodeID, &EngineError{Code: result.Err.Code, Message: result.Err.Message, NodeID: nodeID})
			return lastOutput, result.Err
		}

		ec.recordOutput(nodeID, node.Type, result.Output)
		lastOutput = result.Output
		ec.Callbacks.nodeFinish(nodeID, result.Output, result.Metadata)

		successors := d.successorsFor(idx, node, result)
		frontier = pushDFS(frontier, successors)
	}

	return lastOutput, nil
}

// executeSubflow recursively invokes Execute for a resolved sub-workflow,
// optionally sharing the parent's session id (§4.10 "subflow").
func (d *Driver) executeSubflow(ctx context.Context, sub *Workflow, input Input, sessionID string, parent *ExecContext) (ExecutionResult, error) {
	opts := []Option{
		WithMaxIterations(parent.Options.MaxIterations),
		WithMaxNodeExecutions(parent.Options.MaxNodeExecutions),
		WithMaxToolIterations(parent.Options.MaxToolIterations),
		WithDefaultModel(parent.DefaultModel),
		WithModels(parent.Models),
		WithMemory(parent.Memory),
		WithTools(parent.Tools),
		WithCustomEvaluators(parent.CustomEvaluators),
		WithCompaction(parent.Compaction),
		WithSubflowRegistry(parent.Subflows),
	}
	if sessionID != "" {
		opts = append(opts, withSessionID(sessionID))
	}
	result := d.Execute(ctx, sub, input, parent.Callbacks, opts...)
	return result, nil
}

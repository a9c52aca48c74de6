package workflow

import "context"

// Executor implements one node kind's behavior (C3, §4.3). One instance is
// shared across all nodes of its type within a run; per-node state lives on
// *ExecContext and the Node being executed, never on the Executor itself.
type Executor interface {
	// Type returns the node type string this executor handles.
	Type() string

	// Validate runs preflight checks specific to this node kind, returning
	// zero or more issues. Errors abort the run; warnings are surfaced but
	// ignored (§4.13).
	Validate(node *Node, idx *GraphIndex) []ValidationIssue

	// Execute runs the node's behavior against the given context.
	Execute(ctx context.Context, ec *ExecContext, node *Node) Result

	// DynamicOutputs lists handle ids this node produces beyond the
	// literal "error" handle, used by preflight to validate sourceHandles
	// on router/parallel nodes whose handles are data-driven (§4.1, §4.13).
	DynamicOutputs(node *Node) []NodeInfo
}

// Registry maps a node type string to its Executor (C3).
type Registry struct {
	executors map[string]Executor
}

// NewRegistry builds a Registry holding the given executors keyed by their
// Type(); NewDriver supplies the nine built-in ones.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[string]Executor, len(executors))}
	for _, e := range executors {
		r.executors[e.Type()] = e
	}
	return r
}

// Register adds or replaces the executor for its Type(), allowing hosts to
// install extension node kinds beyond the nine built-ins.
func (r *Registry) Register(e Executor) {
	r.executors[e.Type()] = e
}

// Lookup returns the executor registered for typ, or a passThroughExecutor
// and false if none is registered (§9 "unknown type strings map to a
// pass-through no-op node that fails validation but does not crash").
func (r *Registry) Lookup(typ string) (Executor, bool) {
	e, ok := r.executors[typ]
	if !ok {
		return passThroughExecutor{nodeType: typ}, false
	}
	return e, true
}

// passThroughExecutor handles unrecognized node types: it fails validation
// (so a well-formed graph never contains one after preflight) but still
// executes harmlessly as a no-op, so a caller who disables preflight does
// not crash the engine (§9).
type passThroughExecutor struct {
	nodeType string
}

func (p passThroughExecutor) Type() string { return p.nodeType }

func (p passThroughExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	return []ValidationIssue{{
		Code:    CodeUnknownNodeType,
		Type:    IssueError,
		NodeID:  node.ID,
		Message: "unrecognized node type: " + node.Type,
	}}
}

func (p passThroughExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	return Ok("")
}

func (p passThroughExecutor) DynamicOutputs(node *Node) []NodeInfo {
	return nil
}

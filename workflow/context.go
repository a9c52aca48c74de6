package workflow

import (
	"math/rand"
	"sync"

	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/tool"
)

// ExecContext is the per-run mutable state threaded through every executor
// call (§3, §4.2). The traversal driver owns it exclusively for the
// duration of a run; executors receive a non-owning view and may mutate
// only the fields their contract allows (outputs via their own key,
// history append-only except compaction, nodeChain append-only).
type ExecContext struct {
	// Input is the raw user input for this run; inside a whileLoop body it
	// holds the current iteration's input.
	Input Input

	// Outputs maps node id to its latest string output.
	Outputs map[string]string

	// History is the conversation history, subject to compaction (§4.5).
	History []model.Message

	// ExecCount maps node id to the number of times it has been dispatched.
	ExecCount map[string]int

	// NodeChain records the ordered sequence of visited node ids.
	NodeChain []string

	// SessionID identifies this run (shared with sub-workflow runs that opt in).
	SessionID string

	// Tools is the registry of host-provided tool handlers available to
	// tool nodes and to the reasoning executor's tool loop.
	Tools map[string]RegisteredTool

	// Memory is the optional adapter backing memory nodes.
	Memory MemoryAdapter

	// Models resolves a model name to a ChatModel, falling back to
	// DefaultModel when a node names no model.
	Models       map[string]model.ChatModel
	DefaultModel string

	// SubflowRegistry resolves subflow ids to a runnable Workflow.
	Subflows SubflowRegistry

	// CustomEvaluators resolves a while-loop's customEvaluator name.
	CustomEvaluators map[string]LoopEvaluator

	// Callbacks is the typed event sink (§4.12).
	Callbacks Callbacks

	// Compaction configures history compaction for reasoning nodes (§4.5).
	Compaction CompactionConfig

	// Options carries the resolved run-wide caps and defaults (§6).
	Options ResolvedOptions

	// RNG drives jittered retry backoff deterministically when seeded from
	// SessionID, mirroring the teacher's computeBackoff(attempt, base, max, rng).
	RNG *rand.Rand

	// idx is the GraphIndex for the run currently executing, set by the
	// driver so nested traversals (whileLoop body, subflow) can reach it
	// without threading it through every executor signature.
	idx *GraphIndex

	cancel *cancelToken
	mu     sync.Mutex
}

// RegisteredTool pairs a tool's input schema with its executable handler.
type RegisteredTool struct {
	Schema  map[string]any
	Handler tool.Tool
}

// LoopEvaluator is a caller-injected continue/stop decision for a
// whileLoop node's customEvaluator (§4.8).
type LoopEvaluator func(ctx *ExecContext, iteration int) (shouldContinue bool, err error)

// SubflowRegistry resolves a subflow id to its Workflow definition.
type SubflowRegistry interface {
	Resolve(subflowID string) (*Workflow, bool)
}

// MapSubflowRegistry is the simplest SubflowRegistry: a static map.
type MapSubflowRegistry map[string]*Workflow

func (m MapSubflowRegistry) Resolve(id string) (*Workflow, bool) {
	wf, ok := m[id]
	return wf, ok
}

// cancelToken is a monotonic, idempotent, one-way cancellation flag (§5).
type cancelToken struct {
	ch   chan struct{}
	once sync.Once
}

func newCancelToken() *cancelToken {
	return &cancelToken{ch: make(chan struct{})}
}

func (c *cancelToken) Cancel() {
	c.once.Do(func() { close(c.ch) })
}

func (c *cancelToken) Cancelled() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

func (c *cancelToken) Done() <-chan struct{} {
	return c.ch
}

// Cancel marks the run's cancellation token as set. Idempotent and one-way.
func (ec *ExecContext) Cancel() {
	ec.cancel.Cancel()
}

// Cancelled reports whether the run's cancellation token has been set.
func (ec *ExecContext) Cancelled() bool {
	return ec.cancel.Cancelled()
}

// Done returns a channel closed once the run is cancelled, suitable for
// select at any suspension point (§5).
func (ec *ExecContext) Done() <-chan struct{} {
	return ec.cancel.Done()
}

// recordOutput writes to Outputs and, for reasoning node kinds, appends an
// assistant message to History (§4.2). Non-reasoning executors must not
// call this for history purposes; the driver calls it once per dispatch.
func (ec *ExecContext) recordOutput(nodeID, nodeType, text string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.Outputs[nodeID] = text
	if isReasoningKind(nodeType) {
		ec.History = append(ec.History, model.Message{Role: model.RoleAssistant, Content: text})
	}
}

func isReasoningKind(nodeType string) bool {
	switch nodeType {
	case NodeAgent, NodeRouter, NodeParallel, NodeWhileLoop:
		return true
	default:
		return false
	}
}

// incrExecCount increments and returns the new execution count for nodeID.
func (ec *ExecContext) incrExecCount(nodeID string) int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.ExecCount[nodeID]++
	return ec.ExecCount[nodeID]
}

// appendChain appends nodeID to the diagnostic node chain.
func (ec *ExecContext) appendChain(nodeID string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.NodeChain = append(ec.NodeChain, nodeID)
}

// snapshotOutputs returns a shallow copy of Outputs for safe external use.
func (ec *ExecContext) snapshotOutputs() map[string]string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make(map[string]string, len(ec.Outputs))
	for k, v := range ec.Outputs {
		out[k] = v
	}
	return out
}

// modelFor resolves a node-declared model name to a ChatModel, falling back
// to DefaultModel.
func (ec *ExecContext) modelFor(name string) (model.ChatModel, bool) {
	if name == "" {
		name = ec.DefaultModel
	}
	m, ok := ec.Models[name]
	return m, ok
}

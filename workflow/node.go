package workflow

import (
	"encoding/json"
	"time"
)

// Workflow is the user-authored directed graph this engine interprets. It is
// immutable for the duration of a run (§3).
type Workflow struct {
	Meta  WorkflowMeta `json:"meta"`
	Nodes []Node       `json:"nodes"`
	Edges []Edge       `json:"edges"`
}

// WorkflowMeta carries graph-level metadata, unused by the engine beyond
// the version upgrade performed by the loader (see loader package).
type WorkflowMeta struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Node is a single vertex of the workflow graph. Position is an opaque
// layout hint the engine never reads. Data is type-specific and decoded by
// the owning executor (§6, §9).
type Node struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position json.RawMessage `json:"position,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Edge connects two nodes via a named logical output port (handle). When
// SourceHandle is empty the single default port is meant.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// DefaultHandle is the logical port name used when an edge carries no
// explicit SourceHandle.
const DefaultHandle = ""

// ErrorHandle is the reserved handle name routed to on a branch-mode error.
const ErrorHandle = "error"

// Built-in node type strings.
const (
	NodeStart     = "start"
	NodeAgent     = "agent"
	NodeRouter    = "router"
	NodeParallel  = "parallel"
	NodeWhileLoop = "whileLoop"
	NodeTool      = "tool"
	NodeMemory    = "memory"
	NodeSubflow   = "subflow"
	NodeOutput    = "output"
)

// Input is the raw input to a workflow run (§6).
type Input struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a binary input alongside the text input.
type Attachment struct {
	MimeType string `json:"mimeType"`
	Bytes    []byte `json:"bytes"`
}

// ExecutionResult is the terminal outcome of Execute (§6).
type ExecutionResult struct {
	Success   bool              `json:"success"`
	Output    string            `json:"output,omitempty"`
	Error     *EngineError      `json:"error,omitempty"`
	Outputs   map[string]string `json:"outputs"`
	NodeChain []string          `json:"nodeChain"`
}

// NodeInfo is the minimal identifying information about a node, supplied to
// callbacks either directly by an executor or resolved by
// AccumulatingCallbacks from the workflow's node list (§4.12).
type NodeInfo struct {
	ID    string
	Label string
	Type  string
}

// Result is the tagged-sum outcome of an executor's Execute call (§4.3).
// Exactly one of the Ok-shaped fields is meaningful when Err is nil.
type Result struct {
	// Output is the node's textual result on success.
	Output string

	// RouteHint names the outgoing handle to follow. Empty means "use the
	// default handle" (or, for a parallel node, "all outgoing edges" since
	// it already fanned out internally).
	RouteHint string

	// BranchOutputs carries the per-branch output of a parallel node, for
	// diagnostics; the merged Output is still what downstream nodes see.
	BranchOutputs map[string]string

	// Metadata carries executor-specific diagnostic data (e.g. tool traces).
	Metadata map[string]any

	// Err is non-nil on failure.
	Err *ExecError
}

// Ok builds a successful Result.
func Ok(output string) Result {
	return Result{Output: output}
}

// ExecError is an executor-level error, tagged with a classification code
// and whether the retry wrapper (C11) should consider retrying it.
type ExecError struct {
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Cause
}

// Err builds a failing Result from an ExecError.
func Err(code, message string, retryable bool) Result {
	return Result{Err: &ExecError{Code: code, Message: message, Retryable: retryable}}
}

// ErrorHandlingMode selects how the traversal driver reacts to an
// executor error that survives retries (§4.11, §7).
type ErrorHandlingMode string

const (
	// ModeStop aborts the run (default).
	ModeStop ErrorHandlingMode = "stop"
	// ModeContinue records an empty output and proceeds via default successors.
	ModeContinue ErrorHandlingMode = "continue"
	// ModeBranch routes to the node's "error" handle if present, else stops.
	ModeBranch ErrorHandlingMode = "branch"
)

// ErrorHandling configures a node's error-handling mode and retry policy.
type ErrorHandling struct {
	Mode  ErrorHandlingMode `json:"mode,omitempty"`
	Retry *RetryPolicy      `json:"retry,omitempty"`
}

// RetryPolicy configures the retry wrapper for a single node (§4.11).
type RetryPolicy struct {
	MaxRetries int           `json:"maxRetries"`
	BaseDelay  durationMS    `json:"baseDelay"`
	MaxDelay   *durationMS   `json:"maxDelay,omitempty"`
	RetryOn    []string      `json:"retryOn,omitempty"`
	SkipOn     []string      `json:"skipOn,omitempty"`
}

// durationMS is a millisecond duration encoded as a bare JSON number, the
// way the authoring UI (out of scope) emits timing fields.
type durationMS int64

// Duration converts the wire millisecond value to a time.Duration.
func (d durationMS) Duration() time.Duration {
	return time.Duration(d) * time.Millisecond
}

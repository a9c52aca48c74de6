// Package workflow provides the core graph execution engine for agentengine.
package workflow

import "errors"

// Error codes for the engine's error taxonomy. These are the machine-readable
// Code values carried on EngineError and surfaced in ExecutionResult.Error.
const (
	CodeNoStartNode            = "NO_START_NODE"
	CodeMultipleStartNodes     = "MULTIPLE_START_NODES"
	CodeDisconnectedNode       = "DISCONNECTED_NODE"
	CodeDanglingEdge           = "DANGLING_EDGE"
	CodeUnknownHandle          = "UNKNOWN_HANDLE"
	CodeMissingModel           = "MISSING_MODEL"
	CodeEmptyPrompt            = "EMPTY_PROMPT"
	CodeDuplicateSourceHandle  = "DUPLICATE_SOURCE_HANDLE"
	CodeMissingRequiredPort    = "MISSING_REQUIRED_PORT"
	CodeMissingSubflowID       = "MISSING_SUBFLOW_ID"
	CodeSubflowNotFound        = "SUBFLOW_NOT_FOUND"
	CodeMissingInputMapping    = "MISSING_INPUT_MAPPING"
	CodeMissingConditionPrompt = "MISSING_CONDITION_PROMPT"
	CodeInvalidMaxIterations   = "INVALID_MAX_ITERATIONS"
	CodeNodeCapExceeded        = "NODE_CAP_EXCEEDED"
	CodeGlobalCapExceeded      = "GLOBAL_CAP_EXCEEDED"
	CodeToolIterationExceeded  = "TOOL_ITERATION_EXCEEDED"
	CodeRouterInvalidRoute     = "ROUTER_INVALID_ROUTE"
	CodeBranchTimeout          = "BRANCH_TIMEOUT"
	CodeOutputSchemaInvalid    = "OUTPUT_SCHEMA_INVALID"
	CodeRateLimit              = "RATE_LIMIT"
	CodeTimeout                = "TIMEOUT"
	CodeNetwork                = "NETWORK"
	CodeLLMError               = "LLM_ERROR"
	CodeValidation              = "VALIDATION"
	CodeCancelled               = "CANCELLED"
	CodeUnknown                 = "UNKNOWN"
	CodeUnknownNodeType         = "UNKNOWN_NODE_TYPE"
)

// ErrCancelled is returned by blocking operations once the execution
// context's cancellation token has been observed as set.
var ErrCancelled = errors.New("execution cancelled")

// EngineError is the structured error type returned to callers of Execute.
// It carries a machine-readable Code (see the Code* constants) alongside a
// human-readable Message, and optionally the node that produced it and a
// record of any retries attempted before the error was surfaced.
type EngineError struct {
	// Code identifies the failure category. Always one of the Code* constants.
	Code string

	// Message is a human-readable description of the failure.
	Message string

	// NodeID identifies which node produced this error, if any.
	NodeID string

	// Retry carries retry history when the error followed exhausted retries.
	Retry *RetryInfo

	// Cause is the underlying error, if any.
	Cause error
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return e.Code + ": " + e.Message + " (node " + e.NodeID + ")"
	}
	return e.Code + ": " + e.Message
}

// Unwrap supports errors.Is/errors.As against the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// RetryInfo records the retry attempts made before a node error was
// surfaced to the traversal driver.
type RetryInfo struct {
	Attempts    int
	MaxAttempts int
	History     []RetryAttempt
}

// RetryAttempt is a single recorded retry attempt.
type RetryAttempt struct {
	Attempt   int
	Error     string
	Timestamp int64 // unix nanos
}

// ValidationIssue is a single error or warning produced by preflight
// validation (§4.13) or an executor's own validate().
type ValidationIssue struct {
	Code    string
	Type    IssueType
	NodeID  string
	EdgeID  string
	Message string
}

// IssueType classifies a ValidationIssue as blocking or informational.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
)

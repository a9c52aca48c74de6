// Package tool defines the Tool interface consumed by the tool node kind
// and by the reasoning executor's internal tool-calling loop (C9, §4.9).
package tool

import "context"

// Tool is an external action an agent workflow can invoke, either directly
// via a tool node or indirectly when an LLM requests it mid-reasoning.
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//   - Handle errors gracefully with clear error messages
//   - Be idempotent when possible
type Tool interface {
	// Name returns the tool's identifier. The engine addresses a tool by the
	// key it is registered under (a tool node's toolId, and the ToolSpec name
	// surfaced to an LLM), which is usually the same string.
	Name() string

	// Call executes the tool with the provided input and returns the
	// result. input may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

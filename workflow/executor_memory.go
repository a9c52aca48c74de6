package workflow

import (
	"context"
	"strings"
	"time"
)

// memoryExecutor implements the "memory" node kind (C10, §4.10).
type memoryExecutor struct{}

func (memoryExecutor) Type() string { return NodeMemory }

func (memoryExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[MemoryData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid memory data: " + err.Error()}}
	}
	if d.Operation != "query" && d.Operation != "store" {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "memory operation must be 'query' or 'store'"}}
	}
	return nil
}

func (memoryExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[MemoryData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}
	if ec.Memory == nil {
		return Err(CodeValidation, "no memory adapter configured", false)
	}

	switch d.Operation {
	case "query":
		entries, err := ec.Memory.Query(ctx, MemoryQuery{
			Text:      ec.Input.Text,
			SessionID: ec.SessionID,
			Limit:     d.Limit,
			Filter:    d.Filter,
		})
		if err != nil {
			return Err(classifyError(err.Error()), err.Error(), true)
		}
		contents := make([]string, 0, len(entries))
		for _, e := range entries {
			contents = append(contents, e.Content)
		}
		return Ok(strings.Join(contents, "\n"))

	case "store":
		input := ec.Input.Text
		_, err := ec.Memory.Store(ctx, MemoryEntry{
			Content:   input,
			SessionID: ec.SessionID,
			NodeID:    node.ID,
			Timestamp: time.Now().UnixNano(),
		})
		if err != nil {
			return Err(classifyError(err.Error()), err.Error(), true)
		}
		return Ok(input)

	default:
		return Err(CodeValidation, "unknown memory operation: "+d.Operation, false)
	}
}

func (memoryExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

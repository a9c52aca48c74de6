package workflow

import "context"

// toolExecutor implements the "tool" node kind (C9, §4.9): invoke a
// host-provided handler by id with the current input.
type toolExecutor struct{}

func (toolExecutor) Type() string { return NodeTool }

func (toolExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[ToolData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid tool data: " + err.Error()}}
	}
	if d.ToolID == "" {
		return []ValidationIssue{{Code: CodeMissingRequiredPort, Type: IssueError, NodeID: node.ID, Message: "tool node missing toolId"}}
	}
	return nil
}

func (toolExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[ToolData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}

	reg, ok := ec.Tools[d.ToolID]
	if !ok || reg.Handler == nil {
		return Err(CodeMissingRequiredPort, "no tool registered for id: "+d.ToolID, false)
	}

	if ec.Cancelled() {
		return Err(CodeCancelled, ErrCancelled.Error(), false)
	}

	out, err := reg.Handler.Call(ctx, map[string]interface{}{"input": ec.Input.Text})
	if ec.Cancelled() {
		return Err(CodeCancelled, ErrCancelled.Error(), false)
	}
	if err != nil {
		if m := ec.Options.Metrics; m != nil {
			m.IncrementToolCalls(d.ToolID, "error")
		}
		return Err(classifyError(err.Error()), err.Error(), true)
	}

	if m := ec.Options.Metrics; m != nil {
		m.IncrementToolCalls(d.ToolID, "ok")
	}
	return Ok(stringifyToolResult(out))
}

func (toolExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

package workflow

import "context"

// startExecutor is the pass-through start-of-run node (C10, §4.10).
type startExecutor struct{}

func (startExecutor) Type() string { return NodeStart }

func (startExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	if _, err := decode[StartData](node.Data); err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid start data: " + err.Error()}}
	}
	return nil
}

func (startExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	return Ok(ec.Input.Text)
}

func (startExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

package workflow

import (
	"context"
	"errors"
	"regexp"
	"strconv"
)

// whileLoopExecutor implements the "whileLoop" node kind (C8, §4.8). The
// loop body is the subgraph reachable from this node's "body" handle; the
// driver bounds traversal to that subgraph and feeds back its terminal
// output as the next iteration's input, without re-entering the loop node
// itself.
type whileLoopExecutor struct {
	driver *Driver
}

func (whileLoopExecutor) Type() string { return NodeWhileLoop }

func (whileLoopExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[WhileLoopData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid whileLoop data: " + err.Error()}}
	}
	var issues []ValidationIssue
	if d.ConditionPrompt == "" && d.CustomEvaluator == "" {
		issues = append(issues, ValidationIssue{Code: CodeMissingConditionPrompt, Type: IssueError, NodeID: node.ID, Message: "whileLoop node missing conditionPrompt or customEvaluator"})
	}
	if d.MaxIterations <= 0 {
		issues = append(issues, ValidationIssue{Code: CodeInvalidMaxIterations, Type: IssueError, NodeID: node.ID, Message: "whileLoop maxIterations must be positive"})
	}
	return issues
}

func (whileLoopExecutor) DynamicOutputs(node *Node) []NodeInfo {
	return []NodeInfo{
		{ID: "body", Label: "body", Type: "handle"},
		{ID: "done", Label: "done", Type: "handle"},
	}
}

var doneWordPattern = regexp.MustCompile(`(?i)\bdone\b`)

func (e whileLoopExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[WhileLoopData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}
	if e.driver == nil {
		return Err(CodeValidation, "whileLoop executor not wired to a driver", false)
	}

	currentInput := ec.Input.Text
	iteration := 0

	for {
		if ec.Cancelled() {
			return Err(CodeCancelled, ErrCancelled.Error(), false)
		}

		shouldContinue, evalErr := evaluateCondition(ctx, ec, node.ID, d, currentInput, iteration)
		if evalErr != nil {
			return Err(classifyError(evalErr.Error()), evalErr.Error(), true)
		}

		if !shouldContinue {
			result := Ok(currentInput)
			result.RouteHint = "done"
			return result
		}

		if iteration >= d.MaxIterations {
			switch d.OnMaxIterations {
			case "continue":
				result := Ok(currentInput)
				result.RouteHint = "done"
				return result
			case "error":
				return Err(CodeGlobalCapExceeded, "whileLoop exceeded maxIterations", false)
			default: // "warning"
				result := Ok("Warning: Maximum iterations (" + strconv.Itoa(d.MaxIterations) + ") reached: " + currentInput)
				result.RouteHint = "done"
				return result
			}
		}

		bodyOutput, err := e.driver.executeBody(ctx, ec, node.ID, currentInput)
		if err != nil {
			if err == ErrCancelled {
				return Err(CodeCancelled, ErrCancelled.Error(), false)
			}
			var execErr *ExecError
			if errors.As(err, &execErr) {
				return Result{Err: execErr}
			}
			return Err(classifyError(err.Error()), err.Error(), true)
		}
		currentInput = bodyOutput
		iteration++
	}
}

// evaluateCondition evaluates the continue/done decision once per iteration,
// observing currentInput as it stood at loop entry for this iteration —
// never state the body is concurrently rewriting (§4.8).
func evaluateCondition(ctx context.Context, ec *ExecContext, nodeID string, d WhileLoopData, currentInput string, iteration int) (bool, error) {
	if d.CustomEvaluator != "" {
		evaluator, ok := ec.CustomEvaluators[d.CustomEvaluator]
		if !ok {
			return false, errCustomEvaluatorNotFound(d.CustomEvaluator)
		}
		return evaluator(ec, iteration)
	}

	messages := composeMessages(d.ConditionPrompt, nil, currentInput)
	out, err := chatOnce(ctx, ec, nodeID, d.ConditionModel, messages, nil,
		func(tok string) { ec.Callbacks.token(nodeID, tok) },
		func(tok string) { ec.Callbacks.reasoning(nodeID, tok) },
	)
	if err != nil {
		return false, err
	}
	return !doneWordPattern.MatchString(out.Text), nil
}

func errCustomEvaluatorNotFound(name string) error {
	return &ExecError{Code: CodeValidation, Message: "custom evaluator not found: " + name}
}

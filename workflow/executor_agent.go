package workflow

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/graphrun/agentengine/model"
)

// agentExecutor implements the "agent" (reasoning) node kind (C5, §4.5): the
// largest single component, composing messages, streaming a provider call,
// and driving the tool-calling loop until no tool calls remain or the
// iteration cap is hit.
type agentExecutor struct{}

func (agentExecutor) Type() string { return NodeAgent }

func (agentExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[AgentData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid agent data: " + err.Error()}}
	}
	var issues []ValidationIssue
	if d.Model == "" {
		issues = append(issues, ValidationIssue{Code: CodeMissingModel, Type: IssueError, NodeID: node.ID, Message: "agent node missing model"})
	}
	if d.Prompt == "" {
		issues = append(issues, ValidationIssue{Code: CodeEmptyPrompt, Type: IssueWarning, NodeID: node.ID, Message: "agent node has empty prompt"})
	}
	return issues
}

func (agentExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

func (agentExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[AgentData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}

	compacted, err := compact(ctx, ec.Compaction, ec.History, firstModel(ec, d.Model))
	if err != nil {
		return Err(classifyError(err.Error()), err.Error(), true)
	}

	messages := composeMessages(d.Prompt, compacted, ec.Input.Text)
	toolSpecs := resolveToolSpecs(ec, d.Tools)

	maxToolIterations := d.MaxToolIterations
	if maxToolIterations <= 0 {
		maxToolIterations = ec.Options.MaxToolIterations
	}
	if maxToolIterations <= 0 {
		maxToolIterations = DefaultMaxToolIterations
	}

	var lastContent string
	iteration := 0

	for {
		if ec.Cancelled() {
			return Err(CodeCancelled, ErrCancelled.Error(), false)
		}

		out, chatErr := chatOnce(ctx, ec, node.ID, d.Model, messages, toolSpecs,
			func(tok string) { ec.Callbacks.token(node.ID, tok) },
			func(tok string) { ec.Callbacks.reasoning(node.ID, tok) },
		)
		if chatErr != nil {
			if chatErr == ErrCancelled {
				return Err(CodeCancelled, chatErr.Error(), false)
			}
			return Err(classifyError(chatErr.Error()), chatErr.Error(), true)
		}
		lastContent = out.Text

		if len(out.ToolCalls) == 0 {
			return Ok(lastContent)
		}

		// Count this as the Nth tool-producing provider call before checking
		// the cap, so maxToolIterations=N allows exactly N provider calls
		// (§8 scenario 4), not N+1.
		iteration++
		if iteration >= maxToolIterations {
			proceed, result := handleMaxToolIterations(ec, node.ID, d, lastContent, maxToolIterations)
			if !proceed {
				return result
			}
			// HITL approval grants exactly one more loop iteration (§4.5
			// step 4e "hitl"), after which the cap applies again.
			maxToolIterations++
		}

		messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
		messages = appendToolResults(ctx, ec, messages, out.ToolCalls)
	}
}

func firstModel(ec *ExecContext, name string) model.ChatModel {
	m, _ := ec.modelFor(name)
	return m
}

func resolveToolSpecs(ec *ExecContext, names []string) []model.ToolSpec {
	if len(names) == 0 {
		return nil
	}
	specs := make([]model.ToolSpec, 0, len(names))
	for _, name := range names {
		reg, ok := ec.Tools[name]
		if !ok {
			continue
		}
		specs = append(specs, model.ToolSpec{Name: name, Schema: reg.Schema})
	}
	return specs
}

// appendToolResults executes every requested tool call and appends its
// result (or error text) as a tool message (§4.5 step 4b).
func appendToolResults(ctx context.Context, ec *ExecContext, messages []model.Message, calls []model.ToolCall) []model.Message {
	for _, call := range calls {
		content := runToolCall(ctx, ec, call)
		messages = append(messages, model.Message{
			Role:       model.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Name,
		})
	}
	return messages
}

func runToolCall(ctx context.Context, ec *ExecContext, call model.ToolCall) string {
	reg, ok := ec.Tools[call.Name]
	if !ok || reg.Handler == nil {
		return "error: no tool registered for " + call.Name
	}

	var args map[string]interface{}
	if call.Args != "" {
		if err := json.Unmarshal([]byte(call.Args), &args); err != nil {
			return "error: invalid tool arguments: " + err.Error()
		}
	}

	if ec.Cancelled() {
		return "error: " + ErrCancelled.Error()
	}

	out, err := reg.Handler.Call(ctx, args)
	if err != nil {
		if m := ec.Options.Metrics; m != nil {
			m.IncrementToolCalls(call.Name, "error")
		}
		return "error: " + err.Error()
	}
	if m := ec.Options.Metrics; m != nil {
		m.IncrementToolCalls(call.Name, "ok")
	}
	return stringifyToolResult(out)
}

// handleMaxToolIterations applies onMaxToolIterations policy once the tool
// loop has exhausted its cap (§4.5 step 4e). The bool return reports whether
// the caller should grant one more loop iteration (HITL approval only);
// otherwise result is the node's final Result.
func handleMaxToolIterations(ec *ExecContext, nodeID string, d AgentData, lastContent string, cap int) (bool, Result) {
	policy := d.OnMaxToolIterations
	if policy == "" {
		policy = "warning"
	}

	switch policy {
	case "error":
		return false, Err(CodeToolIterationExceeded, "maximum tool iterations ("+strconv.Itoa(cap)+") reached", false)

	case "hitl":
		resp, handled := ec.Callbacks.hitl(HITLRequest{
			NodeID: nodeID,
			Mode:   "approval",
			Context: map[string]any{
				"reason":        "max_tool_iterations",
				"maxIterations": cap,
			},
		})
		if !handled {
			return false, Ok("Warning: Maximum tool iterations (" + strconv.Itoa(cap) + ") reached" + appendIfNonEmpty(lastContent))
		}
		if resp.Approved {
			return true, Result{}
		}
		return false, Ok("Tool iteration stopped by user" + appendIfNonEmpty(lastContent))

	default: // "warning"
		return false, Ok("Warning: Maximum tool iterations (" + strconv.Itoa(cap) + ") reached" + appendIfNonEmpty(lastContent))
	}
}

func appendIfNonEmpty(s string) string {
	if s == "" {
		return ""
	}
	return ": " + s
}

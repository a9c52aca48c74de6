package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/model/mock"
	"github.com/graphrun/agentengine/tool"
)

func TestAgentExecutorValidateRequiresModel(t *testing.T) {
	node := &Node{ID: "a1", Type: NodeAgent, Data: rawData(t, AgentData{Prompt: "hi"})}
	issues := agentExecutor{}.Validate(node, nil)
	found := false
	for _, i := range issues {
		if i.Code == CodeMissingModel {
			found = true
		}
	}
	if !found {
		t.Error("expected CodeMissingModel for an agent node with no model")
	}
}

func TestAgentExecutorValidateWarnsOnEmptyPrompt(t *testing.T) {
	node := &Node{ID: "a1", Type: NodeAgent, Data: rawData(t, AgentData{Model: "mock"})}
	issues := agentExecutor{}.Validate(node, nil)
	if len(issues) != 1 || issues[0].Type != IssueWarning || issues[0].Code != CodeEmptyPrompt {
		t.Errorf("issues = %+v, want a single CodeEmptyPrompt warning", issues)
	}
}

func agentWorkflow(t *testing.T, d AgentData) *Workflow {
	return &Workflow{
		Meta: WorkflowMeta{Version: "2.0.0"},
		Nodes: []Node{
			{ID: "start", Type: NodeStart, Data: rawData(t, StartData{})},
			{ID: "agent", Type: NodeAgent, Data: rawData(t, d)},
			{ID: "out", Type: NodeOutput, Data: rawData(t, OutputData{})},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "agent"},
			{ID: "e2", Source: "agent", Target: "out"},
		},
	}
}

func TestAgentExecutorRunsToolCallingLoopUntilNoMoreCalls(t *testing.T) {
	wf := agentWorkflow(t, AgentData{Model: "mock", Prompt: "help", Tools: []string{"echo"}})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{"echoed": "ping"}}}

	m := &mock.ChatModel{Responses: []model.ChatOut{
		{Text: "calling echo", ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo", Args: `{"text":"ping"}`}}},
		{Text: "final answer"},
	}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"mock": m}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if result.Output != "final answer" {
		t.Errorf("Output = %q, want the second turn's text", result.Output)
	}
	if len(echoTool.Calls) != 1 {
		t.Fatalf("echo tool called %d times, want 1", len(echoTool.Calls))
	}
	if len(m.Calls) != 2 {
		t.Fatalf("model invoked %d times, want 2 (one per tool-loop turn)", len(m.Calls))
	}
	lastMessages := m.Calls[1].Messages
	foundToolMsg := false
	for _, msg := range lastMessages {
		if msg.Role == model.RoleTool && msg.ToolCallID == "c1" {
			foundToolMsg = true
			if !strings.Contains(msg.Content, "ping") {
				t.Errorf("tool result message = %q, want it to carry the handler's JSON output", msg.Content)
			}
		}
	}
	if !foundToolMsg {
		t.Error("expected the second chat call's messages to include the tool result")
	}
}

func alwaysCallsToolModel() *mock.ChatModel {
	out := model.ChatOut{Text: "still working", ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo", Args: "{}"}}}
	return &mock.ChatModel{Responses: []model.ChatOut{out}}
}

func TestAgentExecutorOnMaxToolIterationsError(t *testing.T) {
	wf := agentWorkflow(t, AgentData{
		Model: "mock", Prompt: "help", Tools: []string{"echo"},
		MaxToolIterations: 1, OnMaxToolIterations: "error",
	})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"mock": alwaysCallsToolModel()}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if result.Success {
		t.Fatal("expected Execute to fail once the tool-call loop exceeds maxToolIterations under onMaxToolIterations=error")
	}
}

func TestAgentExecutorOnMaxToolIterationsWarningAnnotatesLastContent(t *testing.T) {
	wf := agentWorkflow(t, AgentData{
		Model: "mock", Prompt: "help", Tools: []string{"echo"},
		MaxToolIterations: 1,
	})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"mock": alwaysCallsToolModel()}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if !strings.Contains(result.Output, "Maximum tool iterations") || !strings.Contains(result.Output, "still working") {
		t.Errorf("Output = %q, want a warning wrapping the last assistant turn", result.Output)
	}
}

// TestAgentExecutorOnMaxToolIterationsMakesExactlyCapProviderCalls guards
// the off-by-one where the cap was checked against the pre-increment
// iteration count, allowing cap+1 provider calls before the policy applied.
func TestAgentExecutorOnMaxToolIterationsMakesExactlyCapProviderCalls(t *testing.T) {
	wf := agentWorkflow(t, AgentData{
		Model: "mock", Prompt: "help", Tools: []string{"echo"},
		MaxToolIterations: 2, OnMaxToolIterations: "error",
	})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{}}}

	m := alwaysCallsToolModel()

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"mock": m}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if result.Success {
		t.Fatal("expected Execute to fail once the tool-call loop exceeds maxToolIterations")
	}
	if len(m.Calls) != 2 {
		t.Errorf("model invoked %d times, want exactly 2 for maxToolIterations=2", len(m.Calls))
	}
	if len(echoTool.Calls) != 1 {
		t.Errorf("echo tool called %d times, want 1 (only the first call's tool calls run before the cap stops the second)", len(echoTool.Calls))
	}
}

func TestAgentExecutorOnMaxToolIterationsHITLApprovalGrantsOneMoreTurn(t *testing.T) {
	wf := agentWorkflow(t, AgentData{
		Model: "mock", Prompt: "help", Tools: []string{"echo"},
		MaxToolIterations: 1, OnMaxToolIterations: "hitl",
	})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{}}}

	m := &mock.ChatModel{Responses: []model.ChatOut{
		{Text: "turn1", ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo"}}},
		{Text: "turn2", ToolCalls: []model.ToolCall{{ID: "c2", Name: "echo"}}},
		{Text: "turn3 final"},
	}}

	var hitlAsked bool
	cb := Callbacks{OnHITLRequest: func(req HITLRequest) HITLResponse {
		hitlAsked = true
		return HITLResponse{Approved: true}
	}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, cb,
		WithModels(map[string]model.ChatModel{"mock": m}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if !hitlAsked {
		t.Error("expected the HITL callback to be consulted once the cap was first hit")
	}
	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if result.Output != "turn3 final" {
		t.Errorf("Output = %q, want the turn after HITL-approved continuation", result.Output)
	}
}

func TestAgentExecutorOnMaxToolIterationsHITLUnhandledFallsBackToWarning(t *testing.T) {
	wf := agentWorkflow(t, AgentData{
		Model: "mock", Prompt: "help", Tools: []string{"echo"},
		MaxToolIterations: 1, OnMaxToolIterations: "hitl",
	})
	echoTool := &tool.MockTool{ToolName: "echo", Responses: []map[string]interface{}{{}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"mock": alwaysCallsToolModel()}),
		WithTools(map[string]RegisteredTool{"echo": {Handler: echoTool}}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if !strings.Contains(result.Output, "Warning") {
		t.Errorf("Output = %q, want a warning fallback when no HITL handler is configured", result.Output)
	}
}

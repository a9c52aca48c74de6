package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/model/mock"
)

func parallelWorkflow(t *testing.T, data ParallelData) *Workflow {
	return &Workflow{
		Meta: WorkflowMeta{Version: "2.0.0"},
		Nodes: []Node{
			{ID: "start", Type: NodeStart, Data: rawData(t, StartData{})},
			{ID: "fanout", Type: NodeParallel, Data: rawData(t, data)},
			{ID: "out", Type: NodeOutput, Data: rawData(t, OutputData{})},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "fanout"},
			{ID: "e2", Source: "fanout", Target: "out"},
		},
	}
}

func TestParallelExecutorValidateRejectsNoBranches(t *testing.T) {
	node := &Node{ID: "p1", Type: NodeParallel, Data: rawData(t, ParallelData{})}
	issues := parallelExecutor{}.Validate(node, nil)
	found := false
	for _, i := range issues {
		if i.Code == CodeMissingRequiredPort {
			found = true
		}
	}
	if !found {
		t.Error("expected CodeMissingRequiredPort for a parallel node with no branches")
	}
}

func TestParallelExecutorDynamicOutputsMapsBranches(t *testing.T) {
	node := &Node{ID: "p1", Type: NodeParallel, Data: rawData(t, ParallelData{
		Branches: []ParallelBranch{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}},
	})}
	outs := parallelExecutor{}.DynamicOutputs(node)
	if len(outs) != 2 || outs[0].ID != "a" || outs[1].ID != "b" || outs[0].Type != "branch" {
		t.Errorf("DynamicOutputs = %+v, want branch infos for a, b", outs)
	}
}

func TestParallelExecutorNoMergeConcatenatesInBranchOrder(t *testing.T) {
	disabled := false
	wf := parallelWorkflow(t, ParallelData{
		Branches: []ParallelBranch{
			{ID: "zeta", Label: "Zeta", Model: "zModel"},
			{ID: "alpha", Label: "Alpha", Model: "aModel"},
		},
		MergeEnabled: &disabled,
	})

	zModel := &mock.ChatModel{Responses: []model.ChatOut{{Text: "z-out"}}}
	aModel := &mock.ChatModel{Responses: []model.ChatOut{{Text: "a-out"}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"zModel": zModel, "aModel": aModel}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	want := "[Alpha]: a-out\n[Zeta]: z-out"
	if result.Output != want {
		t.Errorf("Output = %q, want %q (sorted by branch id regardless of declared order)", result.Output, want)
	}
}

func TestParallelExecutorMergeUsesModelToCombine(t *testing.T) {
	wf := parallelWorkflow(t, ParallelData{
		Model: "merger",
		Branches: []ParallelBranch{
			{ID: "a", Label: "Alpha", Model: "branchModel"},
			{ID: "b", Label: "Beta", Model: "branchModel"},
		},
	})

	branchModel := &mock.ChatModel{Responses: []model.ChatOut{{Text: "branch-output"}}}
	merger := &mock.ChatModel{Responses: []model.ChatOut{{Text: "merged-output"}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"branchModel": branchModel, "merger": merger}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if result.Output != "merged-output" {
		t.Errorf("Output = %q, want the merge model's response", result.Output)
	}

	if len(merger.Calls) != 1 {
		t.Fatalf("merger called %d times, want 1", len(merger.Calls))
	}
	prompt := merger.Calls[0].Messages[0].Content
	if !strings.Contains(prompt, "[Alpha]: branch-output") || !strings.Contains(prompt, "[Beta]: branch-output") {
		t.Errorf("merge prompt = %q, want both branch labels and outputs", prompt)
	}
}

// slowModel blocks until its context is cancelled or done, then reports the
// context error so runBranch's post-call deadline check observes a timeout.
type slowModel struct{}

func (slowModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onDelta func(model.Delta)) (model.ChatOut, error) {
	<-ctx.Done()
	return model.ChatOut{}, ctx.Err()
}

func TestParallelExecutorBranchTimeoutProducesTimeoutMarker(t *testing.T) {
	wf := parallelWorkflow(t, ParallelData{
		BranchTimeout: durationMS(5),
		Branches: []ParallelBranch{
			{ID: "a", Label: "Alpha", Model: "slow"},
			{ID: "b", Label: "Beta", Model: "fast"},
		},
		MergeEnabled: boolPtr(false),
	})

	fast := &mock.ChatModel{Responses: []model.ChatOut{{Text: "fast-out"}}}

	driver := NewDriver()
	result := driver.Execute(context.Background(), wf, Input{Text: "go"}, Callbacks{},
		WithModels(map[string]model.ChatModel{"slow": slowModel{}, "fast": fast}))

	if !result.Success {
		t.Fatalf("Execute failed: %+v", result.Error)
	}
	if !strings.Contains(result.Outputs["fanout"], "[Alpha]: [branch timed out]") {
		t.Errorf("fanout output = %q, want timeout marker for branch a", result.Outputs["fanout"])
	}
	if !strings.Contains(result.Outputs["fanout"], "[Beta]: fast-out") {
		t.Errorf("fanout output = %q, want fast-out for branch b", result.Outputs["fanout"])
	}
}

func boolPtr(b bool) *bool { return &b }

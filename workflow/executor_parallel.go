package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/graphrun/agentengine/model"
)

// parallelExecutor implements the "parallel" node kind (C7, §4.7), fanning
// out one goroutine per branch. Results are collected into a channel and
// sorted deterministically by branch id before merge, the same
// completion-order-independent pattern the teacher's executeParallel /
// mergeDeltas use for concurrent branch state.
type parallelExecutor struct{}

func (parallelExecutor) Type() string { return NodeParallel }

func (parallelExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[ParallelData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid parallel data: " + err.Error()}}
	}
	if len(d.Branches) == 0 {
		return []ValidationIssue{{Code: CodeMissingRequiredPort, Type: IssueError, NodeID: node.ID, Message: "parallel node has no branches"}}
	}
	return nil
}

func (parallelExecutor) DynamicOutputs(node *Node) []NodeInfo {
	d, err := decode[ParallelData](node.Data)
	if err != nil {
		return nil
	}
	out := make([]NodeInfo, 0, len(d.Branches))
	for _, b := range d.Branches {
		out = append(out, NodeInfo{ID: b.ID, Label: b.Label, Type: "branch"})
	}
	return out
}

type branchResult struct {
	id      string
	label   string
	output  string
	timeout bool
	err     error
}

func (parallelExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[ParallelData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}

	branchTimeout := d.BranchTimeout.Duration()

	results := make(chan branchResult, len(d.Branches))
	var wg sync.WaitGroup

	for _, branch := range d.Branches {
		wg.Add(1)
		go func(b ParallelBranch) {
			defer wg.Done()
			results <- runBranch(ctx, ec, node.ID, b, d, branchTimeout)
		}(branch)
	}

	wg.Wait()
	close(results)

	collected := make([]branchResult, 0, len(d.Branches))
	for r := range results {
		collected = append(collected, r)
	}

	// Deterministic merge order regardless of goroutine completion order.
	sort.Slice(collected, func(i, j int) bool { return collected[i].id < collected[j].id })

	branchOutputs := make(map[string]string, len(collected))
	for _, r := range collected {
		if r.timeout {
			branchOutputs[r.id] = "[branch timed out]"
		} else if r.err != nil {
			branchOutputs[r.id] = "[branch error]: " + r.err.Error()
		} else {
			branchOutputs[r.id] = r.output
		}
	}

	if !d.MergeEnabledOrDefault() {
		var sb strings.Builder
		for i, r := range collected {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("[" + r.label + "]: " + branchOutputs[r.id])
		}
		result := Ok(sb.String())
		result.BranchOutputs = branchOutputs
		return result
	}

	mergePrompt := buildMergePrompt(d.Prompt, collected, branchOutputs)
	messages := composeMessages(mergePrompt, nil, ec.Input.Text)
	out, chatErr := chatOnce(ctx, ec, node.ID, d.Model, messages, nil,
		func(tok string) { ec.Callbacks.token(node.ID, tok) },
		func(tok string) { ec.Callbacks.reasoning(node.ID, tok) },
	)
	if chatErr != nil {
		if chatErr == ErrCancelled {
			return Err(CodeCancelled, chatErr.Error(), false)
		}
		return Err(classifyError(chatErr.Error()), chatErr.Error(), true)
	}

	result := Ok(out.Text)
	result.BranchOutputs = branchOutputs
	return result
}

func runBranch(ctx context.Context, ec *ExecContext, parallelNodeID string, b ParallelBranch, d ParallelData, branchTimeout time.Duration) branchResult {
	ec.Callbacks.branchStart(parallelNodeID, b.ID, b.Label)

	branchCtx := ctx
	var cancel context.CancelFunc
	if branchTimeout > 0 {
		branchCtx, cancel = context.WithTimeout(ctx, branchTimeout)
		defer cancel()
	}

	modelName := b.Model
	if modelName == "" {
		modelName = d.Model
	}
	prompt := b.Prompt
	if prompt == "" {
		prompt = d.Prompt
	}

	// Each branch sees an independent snapshot of history taken at fan-out;
	// only the merge step (via the driver's recordOutput) writes back (§5).
	historySnapshot := append([]model.Message(nil), ec.History...)
	messages := composeMessages(prompt, historySnapshot, ec.Input.Text)
	out, err := chatOnce(branchCtx, ec, parallelNodeID+"/"+b.ID, modelName, messages, nil,
		func(tok string) { ec.Callbacks.branchToken(parallelNodeID, b.ID, tok) },
		nil,
	)

	if branchCtx.Err() == context.DeadlineExceeded {
		ec.Callbacks.branchComplete(parallelNodeID, b.ID, b.Label, "[branch timed out]")
		if ec.Options.Metrics != nil {
			ec.Options.Metrics.IncrementBranchCompletion(parallelNodeID, "timeout")
		}
		return branchResult{id: b.ID, label: b.Label, timeout: true}
	}
	if err != nil {
		ec.Callbacks.branchComplete(parallelNodeID, b.ID, b.Label, "[branch error]: "+err.Error())
		if ec.Options.Metrics != nil {
			ec.Options.Metrics.IncrementBranchCompletion(parallelNodeID, "error")
		}
		return branchResult{id: b.ID, label: b.Label, err: err}
	}

	ec.Callbacks.branchComplete(parallelNodeID, b.ID, b.Label, out.Text)
	if ec.Options.Metrics != nil {
		ec.Options.Metrics.IncrementBranchCompletion(parallelNodeID, "ok")
	}
	return branchResult{id: b.ID, label: b.Label, output: out.Text}
}

func buildMergePrompt(base string, branches []branchResult, outputs map[string]string) string {
	var sb strings.Builder
	if base != "" {
		sb.WriteString(base)
	} else {
		sb.WriteString("Combine the following branch results into a single coherent response.")
	}
	for _, b := range branches {
		sb.WriteString("\n[" + b.label + "]: " + outputs[b.id])
	}
	return sb.String()
}

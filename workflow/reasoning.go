package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/graphrun/agentengine/model"
)

// chatOnce resolves modelName (falling back to ec.DefaultModel), invokes the
// provider with streaming, and forwards every delta to onToken/onReasoning.
// It is the shared suspension point used by the reasoning, router, parallel,
// and while-loop executors (§4.5, §4.6, §4.7, §4.8) — a provider call is a
// cancellation observation point (§5). When ec carries a CostTracker or
// Metrics, the call's token usage and latency are recorded against nodeID.
func chatOnce(ctx context.Context, ec *ExecContext, nodeID, modelName string, messages []model.Message, tools []model.ToolSpec, onToken, onReasoning func(string)) (model.ChatOut, error) {
	if ec.Cancelled() {
		return model.ChatOut{}, ErrCancelled
	}
	resolvedName := modelNameOrDefault(modelName, ec.DefaultModel)
	chat, ok := ec.modelFor(modelName)
	if !ok {
		return model.ChatOut{}, fmt.Errorf("model not found: %s", resolvedName)
	}

	start := time.Now()
	out, err := chat.Chat(ctx, messages, tools, func(d model.Delta) {
		if ec.Cancelled() {
			return
		}
		if d.Content != "" && onToken != nil {
			onToken(d.Content)
		}
		if d.Reasoning != "" && onReasoning != nil {
			onReasoning(d.Reasoning)
		}
	})
	latency := time.Since(start)

	if ec.Options.CostTracker != nil && err == nil {
		_ = ec.Options.CostTracker.RecordLLMCall(resolvedName, out.InputTokens, out.OutputTokens, nodeID)
	}
	if ec.Options.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		ec.Options.Metrics.RecordNodeLatency(ec.SessionID, nodeID, "llm_call", latency, status)
	}

	if ec.Cancelled() {
		return out, ErrCancelled
	}
	return out, err
}

func modelNameOrDefault(name, def string) string {
	if name != "" {
		return name
	}
	return def
}

// composeMessages builds the standard [system, ...history, user] sequence
// used by the reasoning executor (§4.5 step 1).
func composeMessages(systemPrompt string, history []model.Message, userInput string) []model.Message {
	msgs := make([]model.Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: userInput})
	return msgs
}

// Package mock provides a deterministic ChatModel test double used to
// exercise the engine's reasoning, router, parallel-merge, and while-loop
// executors without network access (§8 "determinism under a deterministic
// provider").
package mock

import (
	"context"
	"sync"

	"github.com/graphrun/agentengine/model"
)

// ChatModel is a test implementation of model.ChatModel.
//
// Use ChatModel in tests to verify workflow behavior without making actual
// LLM API calls. It provides configurable scripted responses, call history
// tracking, error injection, and streaming delta replay.
//
// Example usage:
//
//	m := &mock.ChatModel{
//	    Responses: []model.ChatOut{
//	        {Text: "Hello back!"},
//	    },
//	    Deltas: [][]model.Delta{
//	        {{Content: "Hello"}, {Content: " back!"}},
//	    },
//	}
//	out, err := m.Chat(ctx, messages, nil, func(d model.Delta) { ... })
type ChatModel struct {
	// Responses contains the sequence of aggregated responses to return.
	// Each call to Chat returns the next response in order; once
	// exhausted, the last response repeats.
	Responses []model.ChatOut

	// Deltas, when non-nil, carries the streamed chunks to replay via
	// onDelta before Chat returns the matching Responses[i]. Index-aligned
	// with Responses; shorter than Responses is fine (no deltas for the
	// remaining calls).
	Deltas [][]model.Delta

	// Err, if set, is returned by Chat instead of a response.
	Err error

	// Calls records every invocation for assertions.
	Calls []Call

	mu        sync.Mutex
	callIndex int
}

// Call records a single invocation of Chat.
type Call struct {
	Messages []model.Message
	Tools    []model.ToolSpec
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onDelta func(model.Delta)) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	idx := m.callIndex
	if idx >= len(m.Responses) && len(m.Responses) > 0 {
		idx = len(m.Responses) - 1
	}
	if idx < len(m.Responses) {
		m.callIndex++
	}
	m.Calls = append(m.Calls, Call{Messages: messages, Tools: tools})
	err := m.Err
	var deltas []model.Delta
	if idx < len(m.Deltas) {
		deltas = m.Deltas[idx]
	}
	m.mu.Unlock()

	if err != nil {
		return model.ChatOut{}, err
	}

	if onDelta != nil {
		for _, d := range deltas {
			if ctx.Err() != nil {
				return model.ChatOut{}, ctx.Err()
			}
			onDelta(d)
		}
	}

	if len(m.Responses) == 0 {
		return model.ChatOut{}, nil
	}
	return m.Responses[idx], nil
}

// Reset clears call history and the response cursor.
func (m *ChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of Chat invocations so far.
func (m *ChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

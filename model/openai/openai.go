// Package openai adapts OpenAI's Chat Completions API to model.ChatModel,
// streaming content deltas and retrying transient failures with backoff,
// mirroring the teacher's retry posture for this provider.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/graphrun/agentengine/model"
)

// ChatModel implements model.ChatModel for OpenAI Chat Completions.
type ChatModel struct {
	modelName  string
	client     openaisdk.Client
	maxRetries int
	retryDelay time.Duration
}

// NewChatModel builds a ChatModel using apiKey, defaulting modelName to
// "gpt-4o" when empty.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{
		modelName:  modelName,
		client:     openaisdk.NewClient(option.WithAPIKey(apiKey)),
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onDelta func(model.Delta)) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.streamOnce(ctx, params, onDelta)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}
		select {
		case <-time.After(m.retryDelay * time.Duration(attempt+1)):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}
	return model.ChatOut{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

func (m *ChatModel) streamOnce(ctx context.Context, params openaisdk.ChatCompletionNewParams, onDelta func(model.Delta)) (model.ChatOut, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openaisdk.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta
			if delta.Content != "" && onDelta != nil {
				onDelta(model.Delta{Content: delta.Content})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.ChatOut{}, fmt.Errorf("openai: stream: %w", err)
	}

	return convertResponse(&acc.ChatCompletion), nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500", "429", "rate limit"} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func convertMessages(messages []model.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		case model.RoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case model.RoleTool:
			result = append(result, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openaisdk.UserMessage(msg.Content))
		}
	}
	return result
}

func convertTools(tools []model.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) model.ChatOut {
	out := model.ChatOut{}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.InputTokens = int(resp.Usage.PromptTokens)
		out.OutputTokens = int(resp.Usage.CompletionTokens)
	}
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}
	return out
}

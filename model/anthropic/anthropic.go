// Package anthropic adapts Anthropic's Claude API to model.ChatModel,
// streaming content and reasoning deltas as they arrive.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/graphrun/agentengine/model"
)

// ChatModel implements model.ChatModel for Claude.
type ChatModel struct {
	modelName string
	client    anthropicsdk.Client
}

// NewChatModel builds a ChatModel using apiKey, defaulting modelName to
// Claude Sonnet when empty.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &ChatModel{
		modelName: modelName,
		client:    anthropicsdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onDelta func(model.Delta)) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	systemPrompt, toolResults, convo := splitMessages(messages)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(m.modelName),
		Messages:  convertMessages(convo, toolResults),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	stream := m.client.Messages.NewStreaming(ctx, params)

	var out model.ChatOut
	message := anthropicsdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return model.ChatOut{}, fmt.Errorf("anthropic: accumulate event: %w", err)
		}

		switch e := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			switch d := e.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				if onDelta != nil && d.Text != "" {
					onDelta(model.Delta{Content: d.Text})
				}
			case anthropicsdk.ThinkingDelta:
				if onDelta != nil && d.Thinking != "" {
					onDelta(model.Delta{Reasoning: d.Thinking})
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic: stream: %w", err)
	}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			out.Text += b.Text
		case anthropicsdk.ThinkingBlock:
			out.Reasoning += b.Thinking
		case anthropicsdk.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{ID: b.ID, Name: b.Name, Args: string(args)})
		}
	}
	out.InputTokens = int(message.Usage.InputTokens)
	out.OutputTokens = int(message.Usage.OutputTokens)

	return out, nil
}

// splitMessages extracts the (possibly multi-part, concatenated) system
// prompt and tool-result messages Anthropic models as user-role blocks
// rather than a "tool" role.
func splitMessages(messages []model.Message) (systemPrompt string, toolResults map[int]model.Message, convo []model.Message) {
	toolResults = make(map[int]model.Message)
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		case model.RoleTool:
			toolResults[len(convo)] = msg
			convo = append(convo, msg)
		default:
			convo = append(convo, msg)
		}
	}
	return systemPrompt, toolResults, convo
}

func convertMessages(messages []model.Message, toolResults map[int]model.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, 0, len(messages))
	for i, msg := range messages {
		if tr, ok := toolResults[i]; ok {
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(tr.ToolCallID, tr.Content, false),
			))
			continue
		}
		switch msg.Role {
		case model.RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			result = append(result, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		}
	}
	return result
}

func convertTools(tools []model.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		var properties any
		var required []string
		if t.Schema != nil {
			if props, ok := t.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := t.Schema["required"].([]string); ok {
				required = req
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return result
}

// Package google adapts Google's Gemini API to model.ChatModel, streaming
// text deltas via GenerateContentStream and surfacing safety-filter blocks
// as a typed error.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/graphrun/agentengine/model"
)

// ChatModel implements model.ChatModel for Gemini.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel builds a ChatModel using apiKey, defaulting modelName to
// "gemini-2.5-flash" when empty.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec, onDelta func(model.Delta)) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	if m.apiKey == "" {
		return model.ChatOut{}, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: new client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	systemPrompt, parts := splitMessages(messages)
	if systemPrompt != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	iter := genModel.GenerateContentStream(ctx, parts...)

	var out model.ChatOut
	for {
		resp, err := iter.Next()
		if err == genai.ErrStreamDone || errors.Is(err, genai.ErrStreamDone) {
			break
		}
		if err != nil {
			return model.ChatOut{}, translateError(err)
		}
		accumulate(&out, resp, onDelta)
	}

	return out, nil
}

func accumulate(out *model.ChatOut, resp *genai.GenerateContentResponse, onDelta func(model.Delta)) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text := string(p)
			out.Text += text
			if onDelta != nil && text != "" {
				onDelta(model.Delta{Content: text})
			}
		case genai.FunctionCall:
			args, _ := marshalArgs(p.Args)
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{Name: p.Name, Args: args})
		}
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
}

func splitMessages(messages []model.Message) (systemPrompt string, parts []genai.Part) {
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return systemPrompt, parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			prop := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				prop.Type = convertType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				prop.Description = desc
			}
			properties[key] = prop
		}
		result.Properties = properties
	}
	if required, ok := schema["required"].([]string); ok {
		result.Required = required
	}
	return result
}

func convertType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func marshalArgs(args map[string]interface{}) (string, error) {
	if args == nil {
		return "", nil
	}
	raw, err := json.Marshal(args)
	return string(raw), err
}

// translateError wraps a blocked-content response as a SafetyFilterError so
// callers can errors.As for it specifically, distinct from transport errors.
func translateError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		reason := "SAFETY"
		category := "unknown"
		if blocked.PromptFeedback != nil {
			reason = blocked.PromptFeedback.BlockReason.String()
		}
		if blocked.Candidate != nil {
			category = blocked.Candidate.FinishReason.String()
		}
		return &SafetyFilterError{reason: reason, category: category}
	}
	return fmt.Errorf("google: generate content: %w", err)
}

// SafetyFilterError reports that Gemini blocked a response via its safety
// filters. Use errors.As to check for it specifically.
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string { return e.category }

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string { return e.reason }

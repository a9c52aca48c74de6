package workflow

import (
	"context"
	"testing"
)

func TestOutputExecutorValidateRejectsUnknownFormat(t *testing.T) {
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{Format: "xml"})}
	issues := outputExecutor{}.Validate(node, nil)
	if len(issues) == 0 {
		t.Error("expected a validation error for an unrecognized output format")
	}
}

func TestOutputExecutorValidateAcceptsKnownFormats(t *testing.T) {
	for _, format := range []string{"", "text", "json", "markdown"} {
		node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{Format: format})}
		if issues := outputExecutor{}.Validate(node, nil); len(issues) != 0 {
			t.Errorf("format %q: unexpected issues %+v", format, issues)
		}
	}
}

func TestOutputExecutorEmptyTemplateEchoesInput(t *testing.T) {
	ec := &ExecContext{Input: Input{Text: "the input text"}, Outputs: map[string]string{}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err != nil || result.Output != "the input text" {
		t.Errorf("result = %+v, want the raw input echoed", result)
	}
}

func TestOutputExecutorTemplateResolvesNamedOutputs(t *testing.T) {
	ec := &ExecContext{Outputs: map[string]string{"classify": "billing"}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{Template: "Routed to {{classify}} team"})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err != nil || result.Output != "Routed to billing team" {
		t.Errorf("result = %+v, want the placeholder substituted", result)
	}
}

func TestOutputExecutorLeavesUnresolvedPlaceholderLiteral(t *testing.T) {
	ec := &ExecContext{Outputs: map[string]string{}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{Template: "{{ghost}}"})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err != nil || result.Output != "{{ghost}}" {
		t.Errorf("result = %+v, want the unresolved placeholder left verbatim", result)
	}
}

func TestOutputExecutorJSONFormatRejectsInvalidJSON(t *testing.T) {
	ec := &ExecContext{Outputs: map[string]string{}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{Template: "not json", Format: "json"})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err == nil || result.Err.Code != CodeOutputSchemaInvalid {
		t.Errorf("result = %+v, want CodeOutputSchemaInvalid", result)
	}
}

func TestOutputExecutorJSONFormatEnforcesRequiredSchemaFields(t *testing.T) {
	ec := &ExecContext{Outputs: map[string]string{}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{
		Template: `{"name":"bob"}`,
		Format:   "json",
		Schema:   map[string]any{"required": []any{"name", "age"}},
	})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err == nil || result.Err.Code != CodeOutputSchemaInvalid {
		t.Errorf("result = %+v, want a schema-validation failure for the missing 'age' field", result)
	}
}

func TestOutputExecutorJSONFormatAcceptsSatisfyingSchema(t *testing.T) {
	ec := &ExecContext{Outputs: map[string]string{}}
	node := &Node{ID: "o1", Type: NodeOutput, Data: rawData(t, OutputData{
		Template: `{"name":"bob","age":30}`,
		Format:   "json",
		Schema:   map[string]any{"required": []any{"name", "age"}},
	})}
	result := outputExecutor{}.Execute(context.Background(), ec, node)
	if result.Err != nil {
		t.Errorf("result = %+v, want success", result)
	}
}

func TestStartExecutorEchoesInputText(t *testing.T) {
	ec := &ExecContext{Input: Input{Text: "seed value"}}
	result := startExecutor{}.Execute(context.Background(), ec, &Node{ID: "s1", Type: NodeStart})
	if result.Err != nil || result.Output != "seed value" {
		t.Errorf("result = %+v, want the input text echoed", result)
	}
}

package workflow

import (
	"context"
	"encoding/json"
	"regexp"
)

// outputExecutor implements the terminal "output" node kind (C10, §4.10).
type outputExecutor struct{}

func (outputExecutor) Type() string { return NodeOutput }

func (outputExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[OutputData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid output data: " + err.Error()}}
	}
	switch d.Format {
	case "", "text", "json", "markdown":
	default:
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "unknown output format: " + d.Format}}
	}
	return nil
}

var outputPlaceholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\s*\}\}`)

func (outputExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[OutputData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}

	template := d.Template
	if template == "" {
		// With no template the node passes through the output of its most
		// recently visited direct predecessor, or the input text when it has none.
		template = ec.Input.Text
	chain:
		for i := len(ec.NodeChain) - 1; ec.idx != nil && i >= 0; i-- {
			for _, e := range ec.idx.Outgoing(ec.NodeChain[i]) {
				if e.Target == node.ID && e.Source != node.ID {
					template = ec.Outputs[e.Source]
					break chain
				}
			}
		}
	}

	composed := outputPlaceholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		groups := outputPlaceholderPattern.FindStringSubmatch(m)
		if v, ok := ec.Outputs[groups[1]]; ok {
			return v
		}
		return m // leave unresolved placeholders literal, per §4.10
	})

	if d.Format == "json" {
		var parsed any
		if err := json.Unmarshal([]byte(composed), &parsed); err != nil {
			return Err(CodeOutputSchemaInvalid, "output is not valid JSON: "+err.Error(), false)
		}
		if len(d.Schema) > 0 {
			if !validateAgainstSchema(parsed, d.Schema) {
				return Err(CodeOutputSchemaInvalid, "output does not satisfy schema", false)
			}
		}
	}

	return Ok(composed)
}

func (outputExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

// validateAgainstSchema performs a minimal structural check: every key
// listed as required in schema's "required" array must be present on an
// object value. Full JSON Schema validation is out of scope for the core
// engine (§1 "out of scope" — model-capability and validation utilities are
// external collaborators); this is the coarse check the output node itself
// needs.
func validateAgainstSchema(value any, schema map[string]any) bool {
	required, ok := schema["required"].([]any)
	if !ok {
		return true
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return len(required) == 0
	}
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := obj[key]; !present {
			return false
		}
	}
	return true
}

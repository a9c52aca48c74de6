package workflow

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// subflowExecutor implements the "subflow" node kind (C10, §4.10): resolve
// subflowId in the registry, evaluate inputMappings, and recursively invoke
// Execute.
type subflowExecutor struct {
	driver *Driver
}

func (subflowExecutor) Type() string { return NodeSubflow }

func (subflowExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[SubflowData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid subflow data: " + err.Error()}}
	}
	var issues []ValidationIssue
	if d.SubflowID == "" {
		issues = append(issues, ValidationIssue{Code: CodeMissingSubflowID, Type: IssueError, NodeID: node.ID, Message: "subflow node missing subflowId"})
	}
	if len(d.InputMappings) == 0 {
		issues = append(issues, ValidationIssue{Code: CodeMissingInputMapping, Type: IssueError, NodeID: node.ID, Message: "subflow node missing inputMappings"})
	}
	return issues
}

var subflowRefPattern = regexp.MustCompile(`\{\{\s*(outputs\.)?([A-Za-z0-9_\-\.]+)\s*\}\}`)

// resolveInputMapping evaluates one inputMappings value: a literal string,
// a reference {{output}} to the current input text (ec.Input.Text), or
// {{outputs.<nodeId>}} to a specific node's recorded output (§4.10).
func resolveInputMapping(ec *ExecContext, raw string) string {
	return subflowRefPattern.ReplaceAllStringFunc(raw, func(m string) string {
		groups := subflowRefPattern.FindStringSubmatch(m)
		if groups[1] == "outputs." {
			if v, ok := ec.Outputs[groups[2]]; ok {
				return v
			}
			return m
		}
		if groups[2] == "output" {
			return ec.Input.Text
		}
		return m
	})
}

// composeSubflowInput resolves every inputMappings entry and joins them into
// the fresh execution input handed to the subflow. Map iteration order is
// randomized by Go, so keys are sorted first to keep the composed input
// (and therefore the subflow's result) identical across runs (§8
// determinism). A single mapping resolves to its bare value, matching the
// common case of a subflow that takes one input; two or more compose as
// "key: value" lines, one per mapping, in key order.
func composeSubflowInput(ec *ExecContext, mappings map[string]string) string {
	if len(mappings) == 0 {
		return ""
	}
	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return resolveInputMapping(ec, mappings[keys[0]])
	}

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+resolveInputMapping(ec, mappings[k]))
	}
	return strings.Join(lines, "\n")
}

func (e subflowExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[SubflowData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}
	if ec.Subflows == nil {
		return Err(CodeSubflowNotFound, "no subflow registry configured", false)
	}
	sub, ok := ec.Subflows.Resolve(d.SubflowID)
	if !ok {
		return Err(CodeSubflowNotFound, "subflow not found: "+d.SubflowID, false)
	}

	text := composeSubflowInput(ec, d.InputMappings)

	sessionID := ec.SessionID
	if !d.ShareSession {
		sessionID = ""
	}

	if e.driver == nil {
		return Err(CodeValidation, "subflow executor not wired to a driver", false)
	}

	result, err := e.driver.executeSubflow(ctx, sub, Input{Text: text}, sessionID, ec)
	if err != nil {
		return Err(classifyError(err.Error()), err.Error(), true)
	}
	if !result.Success {
		msg := "subflow failed"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return Err(CodeSubflowNotFound, msg, false)
	}
	return Ok(result.Output)
}

func (subflowExecutor) DynamicOutputs(node *Node) []NodeInfo { return nil }

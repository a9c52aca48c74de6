package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// routerExecutor implements the "router" node kind (C6, §4.6).
type routerExecutor struct{}

func (routerExecutor) Type() string { return NodeRouter }

func (routerExecutor) Validate(node *Node, idx *GraphIndex) []ValidationIssue {
	d, err := decode[RouterData](node.Data)
	if err != nil {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid router data: " + err.Error()}}
	}
	if len(d.Routes) == 0 {
		return []ValidationIssue{{Code: CodeMissingRequiredPort, Type: IssueError, NodeID: node.ID, Message: "router node has no routes"}}
	}
	if d.FallbackBehavior != "" && d.FallbackBehavior != "first" && d.FallbackBehavior != "error" {
		return []ValidationIssue{{Code: CodeValidation, Type: IssueError, NodeID: node.ID, Message: "invalid fallbackBehavior: " + d.FallbackBehavior}}
	}
	return nil
}

func (routerExecutor) DynamicOutputs(node *Node) []NodeInfo {
	d, err := decode[RouterData](node.Data)
	if err != nil {
		return nil
	}
	out := make([]NodeInfo, 0, len(d.Routes))
	for _, r := range d.Routes {
		out = append(out, NodeInfo{ID: r.ID, Label: r.Label, Type: "route"})
	}
	return out
}

var leadingIntPattern = regexp.MustCompile(`\d+`)

func (routerExecutor) Execute(ctx context.Context, ec *ExecContext, node *Node) Result {
	d, err := decode[RouterData](node.Data)
	if err != nil {
		return Err(CodeValidation, err.Error(), false)
	}

	prompt := buildClassificationPrompt(d.Prompt, d.Routes)
	messages := composeMessages(prompt, nil, ec.Input.Text)

	out, err := chatOnce(ctx, ec, node.ID, d.Model, messages, nil,
		func(tok string) { ec.Callbacks.token(node.ID, tok) },
		func(tok string) { ec.Callbacks.reasoning(node.ID, tok) },
	)
	if err != nil {
		if err == ErrCancelled {
			return Err(CodeCancelled, err.Error(), false)
		}
		return Err(classifyError(err.Error()), err.Error(), true)
	}

	routeID, fallback, routeErr := selectRoute(out.Text, d.Routes, d.FallbackBehavior)
	if routeErr != nil {
		return Err(CodeRouterInvalidRoute, routeErr.Error(), false)
	}

	ec.Callbacks.routeSelected(node.ID, routeID, fallback)
	result := Ok(out.Text)
	result.RouteHint = routeID
	return result
}

func buildClassificationPrompt(base string, routes []RouterRoute) string {
	var sb strings.Builder
	if base != "" {
		sb.WriteString(base)
		sb.WriteString(" ")
	}
	sb.WriteString("Given the input and these options:")
	for i, r := range routes {
		sb.WriteString(fmt.Sprintf(" %d) %s", i+1, r.Label))
	}
	sb.WriteString(" reply with a single number.")
	return sb.String()
}

// selectRoute maps a classifier reply to one of routes per the fallback
// chain in §4.6: parsed leading integer, then case-insensitive substring
// match on a route label, then fallbackBehavior ("first" default, or
// "error").
func selectRoute(reply string, routes []RouterRoute, fallbackBehavior string) (routeID string, fallback bool, err error) {
	if m := leadingIntPattern.FindString(reply); m != "" {
		if n, convErr := strconv.Atoi(m); convErr == nil && n >= 1 && n <= len(routes) {
			return routes[n-1].ID, false, nil
		}
	}

	lowerReply := strings.ToLower(reply)
	for _, r := range routes {
		if r.Label != "" && strings.Contains(lowerReply, strings.ToLower(r.Label)) {
			return r.ID, true, nil
		}
	}

	switch fallbackBehavior {
	case "error":
		return "", true, fmt.Errorf("router could not classify reply: %q", reply)
	default: // "first" or unset
		if len(routes) == 0 {
			return "", true, fmt.Errorf("router has no routes to fall back to")
		}
		return routes[0].ID, true, nil
	}
}

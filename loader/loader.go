// Package loader parses workflow JSON from the wire format, upgrading older
// "1.x" documents to the current "2.0.0" schema before decoding, and runs
// preflight validation over the result.
package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/graphrun/agentengine/workflow"
)

const currentVersion = "2.0.0"

// Load reads a workflow document from r, upgrading it to the current schema
// version if needed, and runs preflight validation against reg. It returns
// the parsed workflow and any validation issues (errors and warnings)
// alongside a parse error, which is non-nil only when the document itself
// could not be read as JSON or decoded into a Workflow.
func Load(r io.Reader, reg *workflow.Registry) (*workflow.Workflow, []workflow.ValidationIssue, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: read: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("loader: invalid JSON document")
	}

	upgraded, err := upgrade(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: upgrade: %w", err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal(upgraded, &wf); err != nil {
		return nil, nil, fmt.Errorf("loader: decode: %w", err)
	}

	issues := workflow.Validate(&wf, reg)
	return &wf, issues, nil
}

// upgrade rewrites a legacy "1.x" document to "2.0.0" in place using gjson
// reads and sjson writes, avoiding a full unmarshal/remarshal round-trip
// just to touch the version field and the one renamed node type
// (llmCall → agent).
func upgrade(raw []byte) ([]byte, error) {
	version := gjson.GetBytes(raw, "meta.version").String()
	if version == "" || version == currentVersion {
		return raw, nil
	}
	if !strings.HasPrefix(version, "1.") {
		return raw, nil
	}

	doc := raw
	var err error
	doc, err = sjson.SetBytes(doc, "meta.version", currentVersion)
	if err != nil {
		return nil, fmt.Errorf("set meta.version: %w", err)
	}

	// 1.x named the agent node kind "llmCall"; 2.0.0 renamed it to "agent".
	nodes := gjson.GetBytes(doc, "nodes").Array()
	for i, n := range nodes {
		if n.Get("type").String() == "llmCall" {
			path := fmt.Sprintf("nodes.%d.type", i)
			doc, err = sjson.SetBytes(doc, path, "agent")
			if err != nil {
				return nil, fmt.Errorf("rename node %d type: %w", i, err)
			}
		}
	}

	return doc, nil
}

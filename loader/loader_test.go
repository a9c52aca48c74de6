package loader

import (
	"strings"
	"testing"

	"github.com/graphrun/agentengine/workflow"
)

const currentVersionDoc = `{
  "meta": {"version": "2.0.0", "name": "greet"},
  "nodes": [
    {"id": "start", "type": "start", "data": {}},
    {"id": "out", "type": "output", "data": {}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "out"}
  ]
}`

const legacyDoc = `{
  "meta": {"version": "1.2", "name": "greet"},
  "nodes": [
    {"id": "start", "type": "start", "data": {}},
    {"id": "call", "type": "llmCall", "data": {"model": "mock", "systemPrompt": "be nice"}},
    {"id": "out", "type": "output", "data": {}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "call"},
    {"id": "e2", "source": "call", "target": "out"}
  ]
}`

func testRegistry() *workflow.Registry {
	return workflow.NewDriver().Registry()
}

func TestLoadCurrentVersionDocumentUnchanged(t *testing.T) {
	wf, issues, err := Load(strings.NewReader(currentVersionDoc), testRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if workflow.HasErrors(issues) {
		t.Fatalf("unexpected validation errors: %+v", issues)
	}
	if wf.Meta.Version != "2.0.0" {
		t.Errorf("Meta.Version = %q, want 2.0.0", wf.Meta.Version)
	}
	if len(wf.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(wf.Nodes))
	}
}

func TestLoadUpgradesLegacyVersionAndRenamesLLMCall(t *testing.T) {
	wf, issues, err := Load(strings.NewReader(legacyDoc), testRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if workflow.HasErrors(issues) {
		t.Fatalf("unexpected validation errors: %+v", issues)
	}
	if wf.Meta.Version != "2.0.0" {
		t.Errorf("Meta.Version = %q, want 2.0.0 after upgrade", wf.Meta.Version)
	}

	var found bool
	for _, n := range wf.Nodes {
		if n.ID == "call" {
			found = true
			if n.Type != "agent" {
				t.Errorf("node %q type = %q, want agent after upgrade", n.ID, n.Type)
			}
		}
	}
	if !found {
		t.Fatal("node 'call' missing from parsed workflow")
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	_, _, err := Load(strings.NewReader("{not json"), testRegistry())
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadLeavesCurrentVersionUnmodifiedEvenWithLLMCallType(t *testing.T) {
	doc := `{
	  "meta": {"version": "2.0.0", "name": "x"},
	  "nodes": [{"id": "n1", "type": "llmCall", "data": {}}],
	  "edges": []
	}`
	wf, _, err := Load(strings.NewReader(doc), testRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if wf.Nodes[0].Type != "llmCall" {
		t.Errorf("node type = %q, want unchanged 'llmCall' since document was already 2.0.0", wf.Nodes[0].Type)
	}
}

func TestLoadReturnsValidationIssuesForDanglingEdge(t *testing.T) {
	doc := `{
	  "meta": {"version": "2.0.0", "name": "x"},
	  "nodes": [{"id": "start", "type": "start", "data": {}}],
	  "edges": [{"id": "e1", "source": "start", "target": "missing"}]
	}`
	_, issues, err := Load(strings.NewReader(doc), testRegistry())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !workflow.HasErrors(issues) {
		t.Error("expected validation errors for a dangling edge target")
	}
}

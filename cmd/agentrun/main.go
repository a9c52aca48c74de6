// Command agentrun loads a workflow JSON document, wires up a mock model so
// the graph can be driven without network access, and executes it once,
// printing the node-by-node trace and the final output.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graphrun/agentengine/loader"
	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/model/mock"
	"github.com/graphrun/agentengine/workflow"
	"github.com/graphrun/agentengine/workflow/wflog"
)

const sampleWorkflow = `{
  "meta": {"version": "2.0.0", "name": "triage-demo"},
  "nodes": [
    {"id": "start", "type": "start", "data": {"label": "Start"}},
    {"id": "classify", "type": "router", "data": {
      "label": "Classify",
      "model": "mock",
      "prompt": "Classify the request as billing or support.",
      "routes": [
        {"id": "billing", "label": "Billing"},
        {"id": "support", "label": "Support"}
      ],
      "fallbackBehavior": "first"
    }},
    {"id": "respond", "type": "agent", "data": {
      "label": "Respond",
      "model": "mock",
      "prompt": "Write a short reply to the user's request."
    }},
    {"id": "finish", "type": "output", "data": {"label": "Finish", "format": "text"}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "classify"},
    {"id": "e2", "source": "classify", "target": "respond", "sourceHandle": "billing"},
    {"id": "e3", "source": "classify", "target": "respond", "sourceHandle": "support"},
    {"id": "e4", "source": "respond", "target": "finish"}
  ]
}`

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	doc := strings.NewReader(sampleWorkflow)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("agentrun: open %s: %v", path, err)
		}
		defer f.Close()
		run(f)
		return
	}
	run(doc)
}

func run(source io.Reader) {
	driver := workflow.NewDriver()

	wf, issues, err := loader.Load(source, driver.Registry())
	if err != nil {
		log.Fatalf("agentrun: load: %v", err)
	}
	for _, issue := range issues {
		fmt.Printf("[%s] %s: %s\n", issue.Type, issue.Code, issue.Message)
	}
	if workflow.HasErrors(issues) {
		log.Fatal("agentrun: workflow failed preflight validation")
	}

	registry := prometheus.NewRegistry()
	metrics := workflow.NewPrometheusMetrics(registry)
	costs := workflow.NewCostTracker("demo-run", "USD")
	emitter := wflog.NewLogEmitter(os.Stdout, false)
	adapter := wflog.NewAdapter("demo-run", emitter)

	mockModel := &mock.ChatModel{
		Responses: []model.ChatOut{
			{Text: "support", InputTokens: 42, OutputTokens: 3},
			{Text: "Thanks for reaching out — a specialist will follow up shortly.", InputTokens: 58, OutputTokens: 16},
		},
	}

	result := driver.Execute(
		context.Background(),
		wf,
		workflow.Input{Text: "My invoice looks wrong this month."},
		adapter.Callbacks(),
		workflow.WithModels(map[string]model.ChatModel{"mock": mockModel}),
		workflow.WithMetrics(metrics),
		workflow.WithCostTracker(costs),
		workflow.WithPreflight(false),
	)

	fmt.Println()
	fmt.Println("=== result ===")
	fmt.Printf("success: %v\n", result.Success)
	fmt.Printf("output: %s\n", result.Output)
	fmt.Printf("node chain: %v\n", result.NodeChain)
	if result.Error != nil {
		fmt.Printf("error: %s\n", result.Error.Error())
	}
	fmt.Printf("total cost: %s\n", costs.String())
}

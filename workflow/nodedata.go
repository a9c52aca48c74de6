package workflow

import "encoding/json"

// Each node type owns its own Data schema and decodes it from the raw
// json.RawMessage on Node.Data (§6, §9 "each executor owns the schema of
// its data"). An unrecognized Node.Type never reaches these decoders; see
// passThroughExecutor in registry.go.

// StartData is the data payload of a "start" node.
type StartData struct {
	Label string `json:"label"`
}

// AgentData is the data payload of an "agent" (reasoning) node.
type AgentData struct {
	Label               string         `json:"label"`
	Model               string         `json:"model"`
	Prompt              string         `json:"prompt"`
	Tools               []string       `json:"tools,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"maxTokens,omitempty"`
	MaxToolIterations   int            `json:"maxToolIterations,omitempty"`
	OnMaxToolIterations string         `json:"onMaxToolIterations,omitempty"`
	ErrorHandling       *ErrorHandling `json:"errorHandling,omitempty"`
	HITL                *HITLConfig    `json:"hitl,omitempty"`
}

// HITLConfig configures the human-in-the-loop gate used when an agent's
// tool loop exceeds its iteration cap with policy "hitl" (§4.5).
type HITLConfig struct {
	Enabled bool `json:"enabled"`
}

// RouterRoute is one labeled outgoing option of a router node.
type RouterRoute struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RouterData is the data payload of a "router" node.
type RouterData struct {
	Label            string        `json:"label"`
	Routes           []RouterRoute `json:"routes"`
	Prompt           string        `json:"prompt,omitempty"`
	Model            string        `json:"model,omitempty"`
	FallbackBehavior string        `json:"fallbackBehavior,omitempty"`
}

// ParallelBranch is one branch of a "parallel" node's fan-out.
type ParallelBranch struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// ParallelData is the data payload of a "parallel" node.
type ParallelData struct {
	Label         string           `json:"label"`
	Branches      []ParallelBranch `json:"branches"`
	Model         string           `json:"model,omitempty"`
	Prompt        string           `json:"prompt,omitempty"`
	BranchTimeout durationMS       `json:"branchTimeout,omitempty"`
	MergeEnabled  *bool            `json:"mergeEnabled,omitempty"`
}

// MergeEnabledOrDefault returns MergeEnabled, defaulting to true (§4.7).
func (d ParallelData) MergeEnabledOrDefault() bool {
	if d.MergeEnabled == nil {
		return true
	}
	return *d.MergeEnabled
}

// WhileLoopData is the data payload of a "whileLoop" node.
type WhileLoopData struct {
	Label            string `json:"label"`
	ConditionPrompt  string `json:"conditionPrompt"`
	ConditionModel   string `json:"conditionModel,omitempty"`
	MaxIterations    int    `json:"maxIterations"`
	OnMaxIterations  string `json:"onMaxIterations,omitempty"`
	CustomEvaluator  string `json:"customEvaluator,omitempty"`
}

// ToolData is the data payload of a "tool" node.
type ToolData struct {
	Label         string         `json:"label"`
	ToolID        string         `json:"toolId"`
	ErrorHandling *ErrorHandling `json:"errorHandling,omitempty"`
}

// MemoryData is the data payload of a "memory" node.
type MemoryData struct {
	Label     string         `json:"label"`
	Operation string         `json:"operation"` // "query" | "store"
	Limit     int            `json:"limit,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// SubflowData is the data payload of a "subflow" node.
type SubflowData struct {
	Label         string            `json:"label"`
	SubflowID     string            `json:"subflowId"`
	InputMappings map[string]string `json:"inputMappings"`
	ShareSession  bool              `json:"shareSession,omitempty"`
}

// OutputData is the data payload of an "output" (terminal) node.
type OutputData struct {
	Label           string         `json:"label"`
	Format          string         `json:"format"` // "text" | "json" | "markdown"
	Template        string         `json:"template,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata,omitempty"`
	Schema          map[string]any `json:"schema,omitempty"`
}

func decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}

package workflow

import "encoding/json"

// stringifyToolResult renders a tool's structured output as text, the way
// both the tool node (§4.9) and the reasoning executor's tool loop (§4.5
// step 4b, "content: result-or-error-text") surface a handler's result to
// downstream consumers.
func stringifyToolResult(out map[string]interface{}) string {
	if out == nil {
		return ""
	}
	b, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(b)
}

package schema

import "encoding/json"

// ToolSpec describes one callable tool as advertised to the LLM.
// Source names the unit the tool was loaded from ("builtin" for tools
// registered in code, otherwise the manifest path).
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema {type, required, properties}
	Source      string
}

// Definition returns the spec in OpenAI function-calling format.
func (s ToolSpec) Definition() map[string]any {
	var params any
	if err := json.Unmarshal(s.Parameters, &params); err != nil || params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        s.Name,
			"description": s.Description,
			"parameters":  params,
		},
	}
}

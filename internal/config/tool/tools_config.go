package tool

// ToolsConfig groups all tool-level settings.
type ToolsConfig struct {
	Web  WebToolsConfig `json:"web"`
	Exec ExecToolConfig `json:"exec"`
	// Dir holds hot-reloadable tool manifests; relative paths resolve
	// against the workspace.
	Dir string `json:"dir"`
	// MaxOutputChars is the per-call result budget before truncation.
	MaxOutputChars int `json:"maxOutputChars"`
	// Watch refreshes the registry as soon as a manifest changes instead
	// of waiting for the next turn.
	Watch bool `json:"watch"`
}

func DefaultToolConfigs() ToolsConfig {
	return ToolsConfig{
		Web:            DefaultWebToolsConfig(),
		Exec:           DefaultExecToolConfig(),
		Dir:            "tools",
		MaxOutputChars: 12000,
		Watch:          true,
	}
}

package agent

// AgentDefaults holds default values for agent behaviour.
type AgentDefaults struct {
	Workspace           string  `json:"workspace"`
	Provider            string  `json:"provider,omitempty"` // empty = first configured provider
	Model               string  `json:"model"`              // empty = provider default
	MaxTokens           int     `json:"maxTokens"`
	Temperature         float64 `json:"temperature"`
	MaxToolIter         int     `json:"maxToolIterations"`
	MaxHistory          int     `json:"maxHistory"`
	RestrictToWorkspace bool    `json:"restrictToWorkspace"`
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:   "~/.bujji/workspace",
		MaxTokens:   8192,
		Temperature: 0.7,
		MaxToolIter: 20,
		MaxHistory:  40,
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{Defaults: defaultAgentDefaults()}
}

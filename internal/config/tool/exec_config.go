package tool

// ExecToolConfig configures the shell-exec tool and manifest commands.
type ExecToolConfig struct {
	Timeout int `json:"timeout"` // seconds
	// ExtraDeny adds regular expressions to the built-in command deny list.
	ExtraDeny []string `json:"extraDeny,omitempty"`
}

func DefaultExecToolConfig() ExecToolConfig {
	return ExecToolConfig{Timeout: 60}
}

// Package config defines the configuration schema for bujji.
//
// JSON keys use camelCase. Every section lives in its own sub-package;
// this package holds the root object, paths and loading.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/config/agent"
	"github.com/MithilSaiReddy/bujji/internal/config/channel"
	"github.com/MithilSaiReddy/bujji/internal/config/gateway"
	"github.com/MithilSaiReddy/bujji/internal/config/provider"
	"github.com/MithilSaiReddy/bujji/internal/config/tool"
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

// Config is the root configuration object, loaded from ~/.bujji/config.json.
type Config struct {
	Agents    agent.AgentsConfig       `json:"agents"`
	Providers provider.ProvidersConfig `json:"providers"`
	Channels  channel.ChannelsConfig   `json:"channels"`
	Tools     tool.ToolsConfig         `json:"tools"`
	Gateway   gateway.GatewayConfig    `json:"gateway"`
	Log       LogConfig                `json:"log"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:    agent.DefaultAgentsConfig(),
		Providers: provider.DefaultProvidersConfig(),
		Channels:  channel.DefaultChannelsConfig(),
		Tools:     tool.DefaultToolConfigs(),
		Gateway:   gateway.DefaultGatewayConfig(),
		Log:       LogConfig{Level: "info"},
	}
}

// WorkspacePath returns the expanded absolute path to the agent workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = filepath.Join(DataDir(), "workspace")
	}
	return expandHome(ws)
}

// ToolsDir returns the directory scanned for tool manifests.
func (c *Config) ToolsDir() string {
	dir := c.Tools.Dir
	if dir == "" {
		dir = "tools"
	}
	dir = expandHome(dir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.WorkspacePath(), dir)
	}
	return dir
}

// SkillsDir returns workspace/skills.
func (c *Config) SkillsDir() string {
	return filepath.Join(c.WorkspacePath(), "skills")
}

// CronPath returns workspace/cron/jobs.json.
func (c *Config) CronPath() string {
	return filepath.Join(c.WorkspacePath(), "cron", "jobs.json")
}

// SessionsDir returns the directory holding persisted session histories.
func (c *Config) SessionsDir() string {
	return filepath.Join(DataDir(), "sessions")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}

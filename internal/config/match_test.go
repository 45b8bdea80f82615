package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchProvider(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(c *Config)
		wantOK    bool
		wantName  string
		wantBase  string
		wantModel string
	}{
		{
			name:   "nothing configured",
			setup:  func(c *Config) {},
			wantOK: false,
		},
		{
			name: "first configured in registry order with defaults",
			setup: func(c *Config) {
				c.Providers.Groq.APIKey = "gsk"
				c.Providers.OpenAI.APIKey = "sk"
			},
			wantOK:    true,
			wantName:  "openai",
			wantBase:  "https://api.openai.com/v1",
			wantModel: "gpt-4o-mini",
		},
		{
			name: "explicit provider wins",
			setup: func(c *Config) {
				c.Providers.OpenAI.APIKey = "sk"
				c.Providers.Groq.APIKey = "gsk"
				c.Agents.Defaults.Provider = "groq"
			},
			wantOK:    true,
			wantName:  "groq",
			wantBase:  "https://api.groq.com/openai/v1",
			wantModel: "llama3-8b-8192",
		},
		{
			name: "model override and custom base",
			setup: func(c *Config) {
				c.Providers.DeepSeek.APIKey = "ds"
				c.Providers.DeepSeek.APIBase = "http://proxy.local/v1"
				c.Agents.Defaults.Model = "deepseek-reasoner"
			},
			wantOK:    true,
			wantName:  "deepseek",
			wantBase:  "http://proxy.local/v1",
			wantModel: "deepseek-reasoner",
		},
		{
			name: "custom provider needs a base url",
			setup: func(c *Config) {
				c.Providers.Custom.APIKey = "k"
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(&cfg)

			ap, ok := cfg.MatchProvider()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantName, ap.Name)
			assert.Equal(t, tt.wantBase, ap.APIBase)
			assert.Equal(t, tt.wantModel, ap.Model)
		})
	}
}

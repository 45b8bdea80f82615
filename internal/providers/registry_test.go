package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-5-sonnet", "anthropic"},
		{"GPT-4o", "openai"},
		{"llama3-70b-8192", "groq"},
		{"deepseek-chat", "deepseek"},
		{"glm-4-flash", "zhipu"},
		{"something-unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := FindByModel(tt.model)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestNewAppliesRegistryDefaults(t *testing.T) {
	c := New(Params{ProviderName: "groq", APIKey: "k"})
	assert.Equal(t, "https://api.groq.com/openai/v1", c.APIBase())
	assert.Equal(t, "llama3-8b-8192", c.DefaultModel())
	assert.Equal(t, DefaultRetryPolicy(), c.cfg.retry)
	assert.False(t, c.cfg.anthropic)

	a := New(Params{ProviderName: "anthropic", APIKey: "k", APIBase: "http://proxy/v1/"})
	assert.Equal(t, "http://proxy/v1", a.APIBase())
	assert.True(t, a.cfg.anthropic)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Ollama", FindByName("ollama").Label())
	assert.Equal(t, "Foo", ProviderSpec{Name: "foo"}.Label())
}

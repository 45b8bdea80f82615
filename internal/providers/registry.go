package providers

import "strings"

// ProviderSpec is the metadata record for one LLM provider. Every provider
// speaks the OpenAI-compatible /chat/completions protocol; they differ in
// base URL, default model and auth headers.
type ProviderSpec struct {
	Name        string   // config field name, e.g. "openrouter"
	DisplayName string   // shown in `bujji status`
	Keywords    []string // model-name keywords for matching (lowercase)

	DefaultAPIBase string // used when the config has no apiBase
	DefaultModel   string // used when neither config nor agent sets a model

	IsLocal       bool // local deployment (Ollama); no network retry worth waiting on
	AnthropicAuth bool // send x-api-key and anthropic-version headers
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// PROVIDERS is the registry. Order = fallback priority when the agent
// config does not name a provider.
var PROVIDERS = []ProviderSpec{
	{
		Name:           "openrouter",
		DisplayName:    "OpenRouter",
		Keywords:       []string{"openrouter"},
		DefaultAPIBase: "https://openrouter.ai/api/v1",
		DefaultModel:   "openai/gpt-4o-mini",
	},
	{
		Name:           "openai",
		DisplayName:    "OpenAI",
		Keywords:       []string{"openai", "gpt", "o1"},
		DefaultAPIBase: "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o-mini",
	},
	{
		Name:           "anthropic",
		DisplayName:    "Anthropic",
		Keywords:       []string{"anthropic", "claude"},
		DefaultAPIBase: "https://api.anthropic.com/v1",
		DefaultModel:   "claude-3-haiku-20240307",
		AnthropicAuth:  true,
	},
	{
		Name:           "groq",
		DisplayName:    "Groq",
		Keywords:       []string{"groq", "llama", "mixtral"},
		DefaultAPIBase: "https://api.groq.com/openai/v1",
		DefaultModel:   "llama3-8b-8192",
	},
	{
		Name:           "google",
		DisplayName:    "Google Gemini",
		Keywords:       []string{"gemini"},
		DefaultAPIBase: "https://generativelanguage.googleapis.com/v1beta/openai",
		DefaultModel:   "gemini-2.0-flash",
	},
	{
		Name:           "mistral",
		DisplayName:    "Mistral",
		Keywords:       []string{"mistral", "codestral"},
		DefaultAPIBase: "https://api.mistral.ai/v1",
		DefaultModel:   "mistral-small-latest",
	},
	{
		Name:           "zhipu",
		DisplayName:    "Zhipu AI",
		Keywords:       []string{"zhipu", "glm"},
		DefaultAPIBase: "https://open.bigmodel.cn/api/paas/v4",
		DefaultModel:   "glm-4-flash",
	},
	{
		Name:           "deepseek",
		DisplayName:    "DeepSeek",
		Keywords:       []string{"deepseek"},
		DefaultAPIBase: "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
	},
	{
		Name:           "ollama",
		DisplayName:    "Ollama",
		Keywords:       []string{"ollama"},
		DefaultAPIBase: "http://localhost:11434/v1",
		DefaultModel:   "llama3.2",
		IsLocal:        true,
	},
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
}

// FindByName returns the spec registered under name, or nil.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}

// FindByModel matches a provider by model-name keyword (case-insensitive).
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for i := range PROVIDERS {
		for _, kw := range PROVIDERS[i].Keywords {
			if strings.Contains(lower, kw) {
				return &PROVIDERS[i]
			}
		}
	}
	return nil
}

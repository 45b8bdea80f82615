package provider

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGroq       = "groq"
	ProviderGoogle     = "google"
	ProviderMistral    = "mistral"
	ProviderZhipu      = "zhipu"
	ProviderDeepSeek   = "deepseek"
	ProviderOllama     = "ollama"
	ProviderCustom     = "custom"
)

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	Model        string            `json:"model,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
	OpenAI     ProviderConfig `json:"openai"`
	Anthropic  ProviderConfig `json:"anthropic"`
	Groq       ProviderConfig `json:"groq"`
	Google     ProviderConfig `json:"google"`
	Mistral    ProviderConfig `json:"mistral"`
	Zhipu      ProviderConfig `json:"zhipu"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Ollama     ProviderConfig `json:"ollama"`
	Custom     ProviderConfig `json:"custom"`
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{}
}

// ByName returns a pointer to the ProviderConfig field matching the given
// registry name. Returns nil if the name is unknown.
func (p *ProvidersConfig) ByName(name string) *ProviderConfig {
	switch name {
	case ProviderOpenRouter:
		return &p.OpenRouter
	case ProviderOpenAI:
		return &p.OpenAI
	case ProviderAnthropic:
		return &p.Anthropic
	case ProviderGroq:
		return &p.Groq
	case ProviderGoogle:
		return &p.Google
	case ProviderMistral:
		return &p.Mistral
	case ProviderZhipu:
		return &p.Zhipu
	case ProviderDeepSeek:
		return &p.DeepSeek
	case ProviderOllama:
		return &p.Ollama
	case ProviderCustom:
		return &p.Custom
	}
	return nil
}

package providers

import (
	"time"

	"github.com/rs/zerolog"
)

// Params are the raw values needed to construct a Client.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "openrouter", "anthropic"
	Timeout      time.Duration
	Retry        RetryPolicy
	Logger       zerolog.Logger
}

// New creates a Client for the given params. Zero values fall back to
// the registry defaults, a 120 s request timeout and DefaultRetryPolicy.
func New(p Params) *Client {
	spec := FindByName(p.ProviderName)
	base := p.APIBase
	model := p.DefaultModel
	if spec != nil {
		if base == "" {
			base = spec.DefaultAPIBase
		}
		if model == "" {
			model = spec.DefaultModel
		}
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retry := p.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = DefaultRetryPolicy()
	}
	return newClient(clientConfig{
		name:         p.ProviderName,
		apiKey:       p.APIKey,
		apiBase:      base,
		model:        model,
		extraHeaders: p.ExtraHeaders,
		anthropic:    spec != nil && spec.AnthropicAuth,
		timeout:      timeout,
		retry:        retry,
		log:          p.Logger,
	})
}

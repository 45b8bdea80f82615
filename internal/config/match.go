package config

import (
	"github.com/MithilSaiReddy/bujji/internal/providers"
)

// ActiveProvider is the resolved LLM backend for the agent.
type ActiveProvider struct {
	Name         string // registry name, e.g. "openrouter"
	APIKey       string
	APIBase      string
	Model        string
	ExtraHeaders map[string]string
}

// MatchProvider resolves which configured provider the agent talks to.
//
// Priority:
//  1. agents.defaults.provider when it names a provider with an API key
//  2. the first provider in registry order with an API key
//
// A provider without a resolvable base URL is skipped. The model is
// agents.defaults.model, then the provider's configured model, then the
// registry default.
func (c *Config) MatchProvider() (ActiveProvider, bool) {
	if want := c.Agents.Defaults.Provider; want != "" {
		if spec := providers.FindByName(want); spec != nil {
			if ap, ok := c.resolve(*spec); ok {
				return ap, true
			}
		}
	}
	for _, spec := range providers.PROVIDERS {
		if ap, ok := c.resolve(spec); ok {
			return ap, true
		}
	}
	return ActiveProvider{}, false
}

func (c *Config) resolve(spec providers.ProviderSpec) (ActiveProvider, bool) {
	p := c.Providers.ByName(spec.Name)
	if p == nil || p.APIKey == "" {
		return ActiveProvider{}, false
	}
	base := p.APIBase
	if base == "" {
		base = spec.DefaultAPIBase
	}
	if base == "" {
		return ActiveProvider{}, false
	}
	model := c.Agents.Defaults.Model
	if model == "" {
		model = p.Model
	}
	if model == "" {
		model = spec.DefaultModel
	}
	return ActiveProvider{
		Name:         spec.Name,
		APIKey:       p.APIKey,
		APIBase:      base,
		Model:        model,
		ExtraHeaders: p.ExtraHeaders,
	}, true
}

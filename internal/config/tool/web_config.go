package tool

// WebSearchConfig configures the Brave web-search tool.
type WebSearchConfig struct {
	APIKey     string `json:"apiKey"`
	MaxResults int    `json:"maxResults"`
}

func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{MaxResults: 5}
}

// WebFetchConfig configures the readability-based page fetcher.
type WebFetchConfig struct {
	MaxChars int `json:"maxChars"`
}

func DefaultWebFetchConfig() WebFetchConfig {
	return WebFetchConfig{MaxChars: 50000}
}

// WebToolsConfig groups web-related tool settings.
type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
	Fetch  WebFetchConfig  `json:"fetch"`
}

func DefaultWebToolsConfig() WebToolsConfig {
	return WebToolsConfig{Search: DefaultWebSearchConfig(), Fetch: DefaultWebFetchConfig()}
}

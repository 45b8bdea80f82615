package channel

// WebConfig configures the browser chat endpoint served by the gateway.
type WebConfig struct {
	Enabled      bool     `json:"enabled"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allowOrigins"` // empty = same host only
}

func DefaultWebConfig() WebConfig {
	return WebConfig{Host: "127.0.0.1", Port: 7337, AllowOrigins: []string{}}
}

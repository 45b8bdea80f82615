package gateway

// HeartbeatConfig controls the periodic HEARTBEAT.md runner.
type HeartbeatConfig struct {
	Enabled         bool   `json:"enabled"`
	IntervalMinutes int    `json:"intervalMinutes"`
	Session         string `json:"session"`
}

// CronConfig controls the jobs.json poller.
type CronConfig struct {
	Enabled     bool   `json:"enabled"`
	TickSeconds int    `json:"tickSeconds"`
	Session     string `json:"session"`
}

// GatewayConfig holds gateway server settings.
type GatewayConfig struct {
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Cron      CronConfig      `json:"cron"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Heartbeat: HeartbeatConfig{Enabled: true, IntervalMinutes: 30, Session: "heartbeat"},
		Cron:      CronConfig{Enabled: true, TickSeconds: 60, Session: "cron"},
	}
}

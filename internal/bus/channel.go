package bus

// Channel names a transport that produces or consumes messages.
type Channel string

const (
	ChannelTelegram  Channel = "telegram"
	ChannelDiscord   Channel = "discord"
	ChannelWeb       Channel = "web"
	ChannelCLI       Channel = "cli"
	ChannelCron      Channel = "cron"
	ChannelHeartbeat Channel = "heartbeat"
)

// ChatIDDirect is the chat id of single-user transports such as the terminal.
const ChatIDDirect = "direct"

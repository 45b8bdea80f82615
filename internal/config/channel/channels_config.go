package channel

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Web      WebConfig      `json:"web"`
}

func DefaultChannelsConfig() ChannelsConfig {
	return ChannelsConfig{
		Telegram: DefaultTelegramConfig(),
		Discord:  DefaultDiscordConfig(),
		Web:      DefaultWebConfig(),
	}
}

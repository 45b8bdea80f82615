package bus

import (
	"strings"
)

// RoutingKey builds the session id for a chat on a channel.
func RoutingKey(channel Channel, chatID string) string {
	if chatID == "" {
		return string(channel)
	}

	return string(channel) + ":" + chatID
}

// ParseRoutingKey splits a routing key into channel and chat ID.
func ParseRoutingKey(key string) (channel Channel, chatID string) {
	if i := strings.Index(key, ":"); i >= 0 {
		return Channel(key[:i]), key[i+1:]
	}

	return Channel(key), ""
}

// Package bus carries messages between chat connectors and the session
// manager.
package bus

import "time"

// InboundMessage is a message received from a connector.
type InboundMessage struct {
	Channel   Channel
	SenderID  string         // user identifier within the channel
	ChatID    string         // chat / channel / DM identifier
	Content   string         // message text
	Timestamp time.Time      // when the message was received
	Metadata  map[string]any // channel-specific extra data (message_id, username, …)
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
func NewInboundMessage(channel Channel, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// SessionKey returns the id of the session this message belongs to.
// Format: "channel:chat_id".
func (m InboundMessage) SessionKey() string {
	return RoutingKey(m.Channel, m.ChatID)
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	r := []rune(m.Content)
	if len(r) > 80 {
		return string(r[:80]) + "..."
	}
	return m.Content
}

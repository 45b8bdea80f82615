package bus

import "github.com/MithilSaiReddy/bujji/internal/schema"

// OutboundMessage is addressed to one chat on one channel.
//
// Event is set for streaming output of an agent turn; Content is then the
// text a non-streaming connector should deliver, if any. Final marks the
// last message of an exchange (the turn's answer or a command reply).
type OutboundMessage struct {
	Channel  Channel
	ChatID   string
	Content  string
	Event    *schema.Event
	Final    bool
	Metadata map[string]any // original inbound metadata, e.g. message_id for replies
}

// NewOutboundMessage creates a plain text message.
func NewOutboundMessage(channel Channel, chatID, content string) OutboundMessage {
	return OutboundMessage{Channel: channel, ChatID: chatID, Content: content}
}

// EventMessage wraps a streaming event for the given chat.
func EventMessage(channel Channel, chatID string, ev schema.Event) OutboundMessage {
	msg := OutboundMessage{Channel: channel, ChatID: chatID, Event: &ev}
	if ev.Kind == schema.EventTurnComplete {
		msg.Content = ev.Text
		msg.Final = true
	}
	return msg
}

// Kind returns the event kind, or 0 for plain text messages.
func (m OutboundMessage) Kind() schema.EventKind {
	if m.Event == nil {
		return 0
	}
	return m.Event.Kind
}

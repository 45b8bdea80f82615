// Package channels provides the chat connectors: terminal, Telegram,
// Discord and the browser chat. Each one only maps inbound traffic to bus
// messages and renders outbound messages; no agent state lives here.
package channels

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/bus"
)

// Channel is a connector run by the Manager.
type Channel interface {
	Name() bus.Channel
	Start(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName bus.Channel
	b           bus.Bus
	allowFrom   []string // empty = allow all
	log         zerolog.Logger
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name bus.Channel, b bus.Bus, allowFrom []string, log zerolog.Logger) Base {
	return Base{
		channelName: name,
		b:           b,
		allowFrom:   allowFrom,
		log:         log.With().Str("channel", string(name)).Logger(),
	}
}

func (b *Base) Name() bus.Channel { return b.channelName }

// IsAllowed checks whether senderID is on the allowlist.
// senderID may be "id|username" (Telegram) or a plain string.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, part := range strings.Split(senderID, "|") {
		if part == "" {
			continue
		}
		for _, allowed := range b.allowFrom {
			if allowed == part || allowed == senderID {
				return true
			}
		}
	}
	return false
}

// HandleMessage verifies the sender is allowed, then pushes an InboundMessage to the bus.
func (b *Base) HandleMessage(ctx context.Context, senderID, chatID, content string, metadata map[string]any) {
	if !b.IsAllowed(senderID) {
		b.log.Warn().Str("sender", senderID).Msg("access denied")
		return
	}

	msg := bus.NewInboundMessage(b.channelName, senderID, chatID, content)
	msg.Metadata = metadata
	if err := b.b.PublishInbound(ctx, msg); err != nil {
		b.log.Warn().Err(err).Msg("inbound dropped")
	}
}

// splitMessage splits content into chunks that fit within maxLen runes,
// preferring newline breaks, then space breaks, then hard cut.
func splitMessage(content string, maxLen int) []string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		if content == "" {
			return nil
		}
		return []string{content}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cut := string(runes[:maxLen])
		head := cut
		// A chunk that ends right before whitespace is already a clean cut.
		if !unicode.IsSpace(runes[maxLen]) {
			pos := strings.LastIndex(cut, "\n")
			if pos <= 0 {
				pos = strings.LastIndex(cut, " ")
			}
			if pos > 0 {
				head = cut[:pos]
			}
		}
		chunks = append(chunks, head)
		rest := strings.TrimLeft(string(runes[len([]rune(head)):]), " \t\n")
		runes = []rune(rest)
	}
	return chunks
}

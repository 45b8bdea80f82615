package channels

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

func TestCLIChannelRoundTrip(t *testing.T) {
	mb := bus.NewMessageBus(8)
	var out bytes.Buffer
	cli := NewCLIChannel(mb, strings.NewReader("hello\n\nexit\n"), &out, true, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stand-in for the dispatcher: answer each inbound message with a
	// streamed reply.
	go func() {
		for {
			select {
			case in := <-mb.InboundChan():
				send := func(ev schema.Event) {
					_ = cli.Send(ctx, bus.EventMessage(in.Channel, in.ChatID, ev))
				}
				send(schema.Event{Kind: schema.EventToolCallDone, ToolName: "read_file", Arguments: `{"path":"notes.md"}`, Executed: true})
				send(schema.Event{Kind: schema.EventTextDelta, Text: "echo: "})
				send(schema.Event{Kind: schema.EventTextDelta, Text: in.Content})
				send(schema.Event{Kind: schema.EventTurnComplete, Text: "echo: " + in.Content})
			case <-ctx.Done():
				return
			}
		}
	}()

	require.NoError(t, cli.Start(ctx))

	text := out.String()
	assert.Contains(t, text, "bujji ready")
	assert.Contains(t, text, "echo: hello")
	assert.Contains(t, text, "read_file")
	assert.Contains(t, text, "notes.md")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, 1, strings.Count(text, "echo: hello"))
}

func TestCLIChannelNonStreamedAnswer(t *testing.T) {
	mb := bus.NewMessageBus(8)
	var out bytes.Buffer
	cli := NewCLIChannel(mb, strings.NewReader("ping\n"), &out, false, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		in := <-mb.InboundChan()
		_ = cli.Send(ctx, bus.NewOutboundMessage(in.Channel, in.ChatID, "a notice"))
		_ = cli.Send(ctx, bus.EventMessage(in.Channel, in.ChatID, schema.Event{Kind: schema.EventTurnComplete, Text: "pong"}))
	}()

	require.NoError(t, cli.Start(ctx))
	text := out.String()
	assert.Contains(t, text, "a notice")
	assert.Contains(t, text, "pong")
}

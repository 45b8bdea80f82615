package bus

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/agent"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// Sessions is the part of the session manager the dispatcher drives.
type Sessions interface {
	Submit(ctx context.Context, id, text string, opts agent.TurnOptions) (<-chan agent.TurnResult, error)
	ClearAsync(ctx context.Context, id string) (<-chan struct{}, error)
}

const helpText = `🛺 bujji commands
/new  - start a new conversation
/help - show this message`

// Dispatcher consumes inbound messages, turns them into session turns and
// publishes the resulting events back on the bus.
//
// Messages are submitted in arrival order, so messages for one chat keep
// their order even though turns are awaited concurrently.
type Dispatcher struct {
	bus      Bus
	sessions Sessions
	log      zerolog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(b Bus, sessions Sessions, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{bus: b, sessions: sessions, log: log}
}

// Run blocks until ctx is cancelled, then waits for in-flight turns to
// publish their results.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info().Msg("dispatcher started")
	defer d.wg.Wait()
	for {
		select {
		case msg := <-d.bus.InboundChan():
			d.handle(ctx, msg)
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopping")
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg InboundMessage) {
	key := msg.SessionKey()
	log := d.log.With().Str("session", key).Logger()
	log.Info().Str("preview", msg.Preview()).Msg("inbound message")

	if d.command(ctx, msg) {
		return
	}

	events := make(chan schema.Event, 64)
	opts := agent.TurnOptions{
		Events: events,
		Send: func(ctx context.Context, text string) error {
			out := NewOutboundMessage(msg.Channel, msg.ChatID, text)
			out.Metadata = msg.Metadata
			return d.bus.PublishOutbound(ctx, out)
		},
	}

	result, err := d.sessions.Submit(ctx, key, msg.Content, opts)
	if err != nil {
		log.Error().Err(err).Msg("cannot submit turn")
		out := NewOutboundMessage(msg.Channel, msg.ChatID, "⚠️ "+err.Error())
		out.Final = true
		d.publish(ctx, out)
		return
	}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		for ev := range events {
			out := EventMessage(msg.Channel, msg.ChatID, ev)
			out.Metadata = msg.Metadata
			d.publish(ctx, out)
		}
	}()
	go func() {
		defer d.wg.Done()
		<-result
		close(events)
	}()
}

// command handles slash commands. It reports false for ordinary text.
// A reset is queued behind the session's pending turns; the reply is sent
// once it ran, without holding up other sessions.
func (d *Dispatcher) command(ctx context.Context, msg InboundMessage) bool {
	reply := func(text string) {
		out := NewOutboundMessage(msg.Channel, msg.ChatID, text)
		out.Final = true
		out.Metadata = msg.Metadata
		d.publish(ctx, out)
	}
	switch strings.ToLower(strings.TrimSpace(msg.Content)) {
	case "/new", "/reset":
		done, err := d.sessions.ClearAsync(ctx, msg.SessionKey())
		if err != nil {
			reply("⚠️ Could not start a new conversation: " + err.Error())
			return true
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			select {
			case <-done:
				reply("🆕 New conversation started.")
			case <-ctx.Done():
			}
		}()
		return true
	case "/help", "/start":
		reply(helpText)
		return true
	}
	return false
}

func (d *Dispatcher) publish(ctx context.Context, out OutboundMessage) {
	if err := d.bus.PublishOutbound(ctx, out); err != nil {
		d.log.Warn().Err(err).Str("channel", string(out.Channel)).Msg("outbound dropped")
	}
}

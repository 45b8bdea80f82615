package channels

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/bus"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels map[bus.Channel]Channel
	bus      bus.Bus
	log      zerolog.Logger
}

// NewManager creates a Manager for the given channels.
func NewManager(b bus.Bus, log zerolog.Logger, chans ...Channel) *Manager {
	m := &Manager{
		channels: make(map[bus.Channel]Channel),
		bus:      b,
		log:      log,
	}
	for _, ch := range chans {
		m.channels[ch.Name()] = ch
		log.Info().Str("name", string(ch.Name())).Msg("channel enabled")
	}
	return m
}

// EnabledChannels returns the names of all enabled channels, sorted.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

// StartAll starts all channels concurrently and dispatches outbound
// messages. Blocks until ctx is cancelled or, when stopOnExit is set, until
// the first channel returns (the terminal REPL ending on EOF).
func (m *Manager) StartAll(ctx context.Context, stopOnExit bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go m.dispatchOutbound(ctx)

	exited := make(chan error, len(m.channels))
	for name, ch := range m.channels {
		go func() {
			m.log.Info().Str("name", string(name)).Msg("starting channel")
			err := ch.Start(ctx)
			if err != nil && ctx.Err() == nil {
				m.log.Error().Err(err).Str("name", string(name)).Msg("channel exited with error")
			}
			exited <- err
		}()
	}

	if stopOnExit {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// dispatchOutbound reads outbound messages and routes each to its
// channel's Send method.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.bus.OutboundChan():
			ch, ok := m.channels[msg.Channel]
			if !ok {
				m.log.Debug().Str("channel", string(msg.Channel)).Msg("unknown channel for outbound message")
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				m.log.Error().Err(err).Str("channel", string(msg.Channel)).Msg("send error")
			}
		case <-ctx.Done():
			return
		}
	}
}

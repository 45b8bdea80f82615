package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/config/channel"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

type discordRecorder struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]any
	auth     []string
}

func (r *discordRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		r.mu.Lock()
		r.paths = append(r.paths, req.URL.Path)
		r.payloads = append(r.payloads, body)
		r.auth = append(r.auth, req.Header.Get("Authorization"))
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestDiscord(url string, showTools bool) *DiscordChannel {
	d := NewDiscordChannel(&channel.DiscordConfig{Token: "tok", ShowToolCalls: showTools}, bus.NewMessageBus(1), zerolog.Nop())
	d.apiBase = url
	return d
}

func TestDiscordSendFinalReply(t *testing.T) {
	rec := &discordRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	d := newTestDiscord(srv.URL, false)
	msg := bus.EventMessage(bus.ChannelDiscord, "chan1", schema.Event{Kind: schema.EventTurnComplete, Text: "done"})
	msg.Metadata = map[string]any{"message_id": "m42"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Send(ctx, msg))

	require.Len(t, rec.payloads, 1)
	assert.Equal(t, "/channels/chan1/messages", rec.paths[0])
	assert.Equal(t, "Bot tok", rec.auth[0])
	assert.Equal(t, "done", rec.payloads[0]["content"])
	ref, ok := rec.payloads[0]["message_reference"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m42", ref["message_id"])
}

func TestDiscordSendSplitsLongMessages(t *testing.T) {
	rec := &discordRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	d := newTestDiscord(srv.URL, false)
	long := strings.Repeat("word ", discordMaxMsgLen/5+50)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Send(ctx, bus.NewOutboundMessage(bus.ChannelDiscord, "c", long)))

	assert.Len(t, rec.payloads, 2)
	_, hasRef := rec.payloads[0]["message_reference"]
	assert.False(t, hasRef)
}

func TestDiscordSendSkipsStreamingEvents(t *testing.T) {
	rec := &discordRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quiet := newTestDiscord(srv.URL, false)
	require.NoError(t, quiet.Send(ctx, bus.EventMessage(bus.ChannelDiscord, "c", schema.Event{Kind: schema.EventTextDelta, Text: "x"})))
	require.NoError(t, quiet.Send(ctx, bus.EventMessage(bus.ChannelDiscord, "c", schema.Event{Kind: schema.EventToolCallDone, ToolName: "exec", Executed: true})))
	assert.Empty(t, rec.payloads)

	chatty := newTestDiscord(srv.URL, true)
	require.NoError(t, chatty.Send(ctx, bus.EventMessage(bus.ChannelDiscord, "c", schema.Event{Kind: schema.EventToolCallDone, ToolName: "exec", Arguments: `{"command":"ls"}`, Executed: true})))
	require.Len(t, rec.payloads, 1)
	assert.Contains(t, rec.payloads[0]["content"], "exec")
}

func TestDiscordSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	d := newTestDiscord(srv.URL, false)
	err := d.Send(context.Background(), bus.NewOutboundMessage(bus.ChannelDiscord, "c", "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

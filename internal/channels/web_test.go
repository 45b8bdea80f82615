package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/config/channel"
	"github.com/MithilSaiReddy/bujji/internal/memory"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

type webFixture struct {
	web     *WebChannel
	bus     *bus.MessageBus
	srv     *httptest.Server
	doc     *memory.Document

	mu      sync.Mutex
	cleared []string
}

func newWebFixture(t *testing.T, origins ...string) *webFixture {
	t.Helper()
	f := &webFixture{
		bus: bus.NewMessageBus(8),
		doc: memory.NewDocument(filepath.Join(t.TempDir(), "USER.md")),
	}
	cfg := &channel.WebConfig{Enabled: true, Host: "127.0.0.1", Port: 0, AllowOrigins: origins}
	f.web = NewWebChannel(cfg, f.bus, WebBackend{
		Tools: func() []schema.ToolSpec {
			return []schema.ToolSpec{{Name: "read_file", Description: "Read a file", Source: "builtin"}}
		},
		Memory: f.doc,
		Clear: func(_ context.Context, id string) error {
			f.mu.Lock()
			f.cleared = append(f.cleared, id)
			f.mu.Unlock()
			return nil
		},
		Status: func() map[string]any { return map[string]any{"model": "test-model"} },
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.srv = httptest.NewServer(f.web.Handler(ctx))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *webFixture) dial(t *testing.T, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws" + query
	return websocket.DefaultDialer.Dial(url, header)
}

func TestWebSocketRoundTrip(t *testing.T) {
	f := newWebFixture(t)
	conn, _, err := f.dial(t, "?session=abc", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello wsOutbound
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "abc", hello.Session)

	require.NoError(t, conn.WriteJSON(wsInbound{Text: "hi there"}))
	select {
	case in := <-f.bus.InboundChan():
		assert.Equal(t, bus.ChannelWeb, in.Channel)
		assert.Equal(t, "abc", in.ChatID)
		assert.Equal(t, "hi there", in.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message")
	}

	ctx := context.Background()
	require.NoError(t, f.web.Send(ctx, bus.EventMessage(bus.ChannelWeb, "abc", schema.Event{Kind: schema.EventTextDelta, Text: "hel"})))
	require.NoError(t, f.web.Send(ctx, bus.EventMessage(bus.ChannelWeb, "abc", schema.Event{Kind: schema.EventTurnComplete, Text: "hello"})))
	// Other chats never reach this socket.
	require.NoError(t, f.web.Send(ctx, bus.EventMessage(bus.ChannelWeb, "zzz", schema.Event{Kind: schema.EventTurnComplete, Text: "nope"})))

	var delta, done wsOutbound
	require.NoError(t, conn.ReadJSON(&delta))
	assert.Equal(t, "text_delta", delta.Type)
	assert.Equal(t, "hel", delta.Text)
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, "turn_complete", done.Type)
	assert.Equal(t, "hello", done.Text)
	assert.True(t, done.Final)
}

func TestWebSocketAssignsSession(t *testing.T) {
	f := newWebFixture(t)
	conn, _, err := f.dial(t, "", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello wsOutbound
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Len(t, hello.Session, 36)
}

func TestWebSocketOriginCheck(t *testing.T) {
	f := newWebFixture(t)
	_, resp, err := f.dial(t, "", http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	allowed := newWebFixture(t, "http://app.example")
	conn, _, err := allowed.dial(t, "", http.Header{"Origin": {"http://app.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestWebAPIStatusAndTools(t *testing.T) {
	f := newWebFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, true, status["ok"])
	assert.Equal(t, "test-model", status["model"])

	resp2, err := http.Get(f.srv.URL + "/api/tools")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var tools struct {
		Tools []struct {
			Name   string `json:"name"`
			Source string `json:"source"`
		} `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&tools))
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "read_file", tools.Tools[0].Name)
	assert.Equal(t, "builtin", tools.Tools[0].Source)
}

func TestWebAPIMemory(t *testing.T) {
	f := newWebFixture(t)

	resp, err := http.Post(f.srv.URL+"/api/memory", "application/json", strings.NewReader(`{"content":"likes tea"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := f.doc.Read()
	require.NoError(t, err)
	assert.Equal(t, "likes tea", got)

	resp, err = http.Get(f.srv.URL + "/api/memory")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body memoryBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "likes tea", body.Content)

	bad, err := http.Post(f.srv.URL+"/api/memory", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestWebAPIClear(t *testing.T) {
	f := newWebFixture(t)

	resp, err := http.Post(f.srv.URL+"/api/clear", "application/json", strings.NewReader(`{"session":"abc"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.mu.Lock()
	assert.Equal(t, []string{"web:abc"}, f.cleared)
	f.mu.Unlock()

	resp, err = http.Post(f.srv.URL+"/api/clear", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebIndexPage(t *testing.T) {
	f := newWebFixture(t)
	resp, err := http.Get(f.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

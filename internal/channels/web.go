package channels

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/config/channel"
	"github.com/MithilSaiReddy/bujji/internal/memory"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

//go:embed web_index.html
var webIndexHTML []byte

// WebBackend is what the HTTP API reads and mutates besides the bus.
type WebBackend struct {
	Tools    func() []schema.ToolSpec
	Memory   *memory.Document
	Clear    func(ctx context.Context, sessionID string) error
	Status   func() map[string]any
	MaxInput int64 // bytes accepted per websocket frame; 0 = 64 KiB
}

// WebChannel serves the browser chat over a websocket plus a small JSON API.
// Each websocket connection is bound to one chat id; every event of that
// chat's turns is forwarded to it.
type WebChannel struct {
	Base
	cfg      *channel.WebConfig
	backend  WebBackend
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*webClient]struct{}
}

type webClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *webClient) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

func NewWebChannel(cfg *channel.WebConfig, b bus.Bus, backend WebBackend, log zerolog.Logger) *WebChannel {
	if backend.MaxInput <= 0 {
		backend.MaxInput = 64 << 10
	}
	w := &WebChannel{
		Base:    NewBase(bus.ChannelWeb, b, nil, log),
		cfg:     cfg,
		backend: backend,
		clients: map[string]map[*webClient]struct{}{},
	}
	w.upgrader = websocket.Upgrader{CheckOrigin: w.checkOrigin}
	return w
}

// Addr is the listen address from config.
func (w *WebChannel) Addr() string {
	return net.JoinHostPort(w.cfg.Host, strconv.Itoa(w.cfg.Port))
}

// Start serves HTTP until ctx is cancelled.
func (w *WebChannel) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              w.Addr(),
		Handler:           w.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		w.log.Info().Str("addr", srv.Addr).Msg("web chat listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		w.closeAll()
		return ctx.Err()
	}
}

// Handler builds the HTTP routes. ctx bounds the websocket sessions.
func (w *WebChannel) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(webIndexHTML)
	})
	mux.HandleFunc("GET /ws", func(rw http.ResponseWriter, r *http.Request) { w.handleWS(ctx, rw, r) })
	mux.HandleFunc("GET /api/status", w.handleStatus)
	mux.HandleFunc("GET /api/tools", w.handleTools)
	mux.HandleFunc("GET /api/memory", w.handleMemoryGet)
	mux.HandleFunc("POST /api/memory", w.handleMemoryPost)
	mux.HandleFunc("POST /api/clear", w.handleClear)
	return mux
}

func (w *WebChannel) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range w.cfg.AllowOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// wsInbound is what the browser sends.
type wsInbound struct {
	Text string `json:"text"`
}

// wsOutbound is what the browser receives.
type wsOutbound struct {
	Type      string `json:"type"`
	Session   string `json:"session,omitempty"`
	Text      string `json:"text,omitempty"`
	Tool      string `json:"tool,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Final     bool   `json:"final,omitempty"`
}

func (w *WebChannel) handleWS(ctx context.Context, rw http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("session")
	if chatID == "" {
		chatID = uuid.NewString()
	}
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(w.backend.MaxInput)
	client := &webClient{conn: conn}
	w.register(chatID, client)
	defer w.unregister(chatID, client)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := client.write(wsOutbound{Type: "session", Session: chatID}); err != nil {
		return
	}
	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Text == "" {
			continue
		}
		w.HandleMessage(ctx, "web", chatID, in.Text, nil)
	}
}

func (w *WebChannel) register(chatID string, c *webClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.clients[chatID]
	if !ok {
		set = map[*webClient]struct{}{}
		w.clients[chatID] = set
	}
	set[c] = struct{}{}
}

func (w *WebChannel) unregister(chatID string, c *webClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if set, ok := w.clients[chatID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(w.clients, chatID)
		}
	}
	c.conn.Close()
}

func (w *WebChannel) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, set := range w.clients {
		for c := range set {
			c.conn.Close()
		}
	}
	w.clients = map[string]map[*webClient]struct{}{}
}

// Send forwards every message for a chat to its open sockets.
func (w *WebChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	w.mu.Lock()
	targets := make([]*webClient, 0, len(w.clients[msg.ChatID]))
	for c := range w.clients[msg.ChatID] {
		targets = append(targets, c)
	}
	w.mu.Unlock()

	out := toWSOutbound(msg)
	for _, c := range targets {
		if err := c.write(out); err != nil {
			w.log.Debug().Err(err).Str("chat", msg.ChatID).Msg("websocket write failed")
		}
	}
	return nil
}

func toWSOutbound(msg bus.OutboundMessage) wsOutbound {
	if msg.Event == nil {
		return wsOutbound{Type: "message", Text: msg.Content, Final: msg.Final}
	}
	ev := msg.Event
	out := wsOutbound{
		Type:      ev.Kind.String(),
		Session:   ev.SessionID,
		Text:      ev.Text,
		Tool:      ev.ToolName,
		CallID:    ev.ToolCallID,
		Arguments: ev.Arguments,
		Result:    ev.Result,
		Final:     msg.Final,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (w *WebChannel) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"ok": true}
	if w.backend.Status != nil {
		for k, v := range w.backend.Status() {
			status[k] = v
		}
	}
	w.mu.Lock()
	status["web_clients"] = len(w.clients)
	w.mu.Unlock()
	writeJSON(rw, http.StatusOK, status)
}

func (w *WebChannel) handleTools(rw http.ResponseWriter, _ *http.Request) {
	type toolView struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
		Source      string          `json:"source"`
	}
	var out []toolView
	if w.backend.Tools != nil {
		for _, s := range w.backend.Tools() {
			out = append(out, toolView{Name: s.Name, Description: s.Description, Parameters: s.Parameters, Source: s.Source})
		}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tools": out})
}

type memoryBody struct {
	Content string `json:"content"`
}

func (w *WebChannel) handleMemoryGet(rw http.ResponseWriter, _ *http.Request) {
	if w.backend.Memory == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "memory not configured"})
		return
	}
	content, err := w.backend.Memory.Read()
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, memoryBody{Content: content})
}

func (w *WebChannel) handleMemoryPost(rw http.ResponseWriter, r *http.Request) {
	if w.backend.Memory == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "memory not configured"})
		return
	}
	var body memoryBody
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := w.backend.Memory.Replace(body.Content); err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (w *WebChannel) handleClear(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<16)).Decode(&body); err != nil || body.Session == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "session is required"})
		return
	}
	if w.backend.Clear == nil {
		writeJSON(rw, http.StatusNotImplemented, map[string]string{"error": "clear not supported"})
		return
	}
	if err := w.backend.Clear(r.Context(), bus.RoutingKey(bus.ChannelWeb, body.Session)); err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

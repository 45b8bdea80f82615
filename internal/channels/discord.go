package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/config/channel"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

const (
	discordAPI       = "https://discord.com/api/v10"
	discordMaxMsgLen = 2000
)

// Gateway opcodes.
const (
	discordOpDispatch       = 0
	discordOpHeartbeat      = 1
	discordOpIdentify       = 2
	discordOpReconnect      = 7
	discordOpInvalidSession = 9
	discordOpHello          = 10
)

// DiscordChannel connects to the Discord Gateway WebSocket and replies
// through the REST API.
type DiscordChannel struct {
	Base
	cfg        *channel.DiscordConfig
	httpClient *http.Client
	apiBase    string

	// writeMu serialises writes on the gateway socket (heartbeats and
	// identify come from different goroutines).
	writeMu sync.Mutex
	seqMu   sync.Mutex
	seq     *int
}

func NewDiscordChannel(cfg *channel.DiscordConfig, b bus.Bus, log zerolog.Logger) *DiscordChannel {
	return &DiscordChannel{
		Base:       NewBase(bus.ChannelDiscord, b, cfg.AllowFrom, log),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    discordAPI,
	}
}

func (d *DiscordChannel) Start(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: token not configured")
	}
	for {
		err := d.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.log.Warn().Err(err).Msg("discord gateway disconnected, reconnecting in 5s")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (d *DiscordChannel) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.cfg.GatewayURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	d.log.Info().Msg("discord gateway connected")
	return d.gatewayLoop(ctx, conn)
}

type discordPayload struct {
	Op int             `json:"op"`
	S  *int            `json:"s"`
	T  string          `json:"t"`
	D  json.RawMessage `json:"d"`
}

func (d *DiscordChannel) gatewayLoop(ctx context.Context, conn *websocket.Conn) error {
	heartbeatStop := make(chan struct{})
	defer close(heartbeatStop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var payload discordPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		if payload.S != nil {
			d.seqMu.Lock()
			d.seq = payload.S
			d.seqMu.Unlock()
		}

		switch payload.Op {
		case discordOpHello:
			var hello struct {
				HeartbeatInterval int `json:"heartbeat_interval"`
			}
			_ = json.Unmarshal(payload.D, &hello)
			interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
			if interval <= 0 {
				interval = 41250 * time.Millisecond
			}
			go d.heartbeatLoop(ctx, conn, interval, heartbeatStop)
			if err := d.identify(conn); err != nil {
				return err
			}
		case discordOpDispatch:
			if payload.T == "MESSAGE_CREATE" {
				var msg discordMessage
				if err := json.Unmarshal(payload.D, &msg); err == nil {
					d.handleMessageCreate(ctx, msg)
				}
			}
		case discordOpReconnect, discordOpInvalidSession:
			return fmt.Errorf("discord: gateway requested reconnect (op=%d)", payload.Op)
		}
	}
}

func (d *DiscordChannel) writeJSON(conn *websocket.Conn, v any) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (d *DiscordChannel) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			d.seqMu.Lock()
			seq := d.seq
			d.seqMu.Unlock()
			if err := d.writeJSON(conn, map[string]any{"op": discordOpHeartbeat, "d": seq}); err != nil {
				return
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *DiscordChannel) identify(conn *websocket.Conn) error {
	return d.writeJSON(conn, map[string]any{
		"op": discordOpIdentify,
		"d": map[string]any{
			"token":   d.cfg.Token,
			"intents": d.cfg.Intents,
			"properties": map[string]any{
				"os": "bujji", "browser": "bujji", "device": "bujji",
			},
		},
	})
}

type discordMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
	Attachments []struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	} `json:"attachments"`
}

func (d *DiscordChannel) handleMessageCreate(ctx context.Context, msg discordMessage) {
	if msg.Author.Bot || msg.Author.ID == "" || msg.ChannelID == "" {
		return
	}

	parts := []string{}
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}
	for _, a := range msg.Attachments {
		parts = append(parts, fmt.Sprintf("[attachment: %s %s]", a.Filename, a.URL))
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		text = "[empty message]"
	}

	if d.IsAllowed(msg.Author.ID) {
		go d.triggerTyping(ctx, msg.ChannelID)
	}

	d.HandleMessage(ctx, msg.Author.ID, msg.ChannelID, text, map[string]any{
		"message_id": msg.ID,
		"guild_id":   msg.GuildID,
		"username":   msg.Author.Username,
	})
}

func (d *DiscordChannel) triggerTyping(ctx context.Context, channelID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/channels/"+channelID+"/typing", nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bot "+d.cfg.Token)
	if resp, err := d.httpClient.Do(req); err == nil {
		resp.Body.Close()
	}
}

// Send delivers final answers and plain notices.
func (d *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	text := msg.Content
	switch msg.Kind() {
	case schema.EventToolCallDone:
		if !d.cfg.ShowToolCalls || !msg.Event.Executed {
			return nil
		}
		text = "🔧 " + toolHint(msg.Event)
	case 0, schema.EventTurnComplete:
	default:
		return nil
	}

	url := d.apiBase + "/channels/" + msg.ChatID + "/messages"
	replyTo, _ := msg.Metadata["message_id"].(string)
	for i, chunk := range splitMessage(text, discordMaxMsgLen) {
		payload := map[string]any{"content": chunk}
		if i == 0 && msg.Final && replyTo != "" {
			payload["message_reference"] = map[string]any{"message_id": replyTo}
			payload["allowed_mentions"] = map[string]any{"replied_user": false}
		}
		if err := d.postJSON(ctx, url, payload); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiscordChannel) postJSON(ctx context.Context, url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+d.cfg.Token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.httpClient.Do(req)
		if err != nil {
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			var rate struct {
				RetryAfter float64 `json:"retry_after"`
			}
			_ = json.Unmarshal(body, &rate)
			wait := time.Duration(rate.RetryAfter*1000) * time.Millisecond
			if wait <= 0 {
				wait = time.Second
			}
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("discord: HTTP %d: %s", resp.StatusCode, string(body))
		}
		return nil
	}
	return fmt.Errorf("discord: max retries exceeded")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

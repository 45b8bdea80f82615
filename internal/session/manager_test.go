package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/agent"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// echoProvider answers with the last user message. When gate is set, each
// call waits for a value on it first.
type echoProvider struct {
	gate     chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (p *echoProvider) DefaultModel() string { return "echo" }

func (p *echoProvider) Complete(ctx context.Context, msgs schema.Messages, _ []map[string]any, _ schema.ChatOptions, _ chan<- schema.Event) (schema.Completion, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.maxSeen.Load()
		if n <= old || p.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return schema.Completion{}, ctx.Err()
		}
	}
	last := msgs.Messages[len(msgs.Messages)-1]
	return schema.Completion{Content: "re: " + last.Content}, nil
}

func newTestManager(t *testing.T, p schema.LLMProvider, maxHistory int) (*Manager, *Store) {
	t.Helper()
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	var created atomic.Int32
	factory := func(id string, history schema.Messages) *agent.Loop {
		created.Add(1)
		return agent.NewLoop(id, agent.Deps{
			Provider: p,
			Settings: schema.NewAgentSettings("echo", 5, 0, 100),
			Log:      zerolog.Nop(),
		}, history)
	}
	m := NewManager(store, factory, maxHistory, zerolog.Nop())
	t.Cleanup(m.Close)
	return m, store
}

func TestManager_OneLoopPerSession(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 0)
	a, err := m.GetOrCreate("a")
	require.NoError(t, err)
	a2, err := m.GetOrCreate("a")
	require.NoError(t, err)
	b, err := m.GetOrCreate("b")
	require.NoError(t, err)

	assert.Same(t, a, a2)
	assert.Same(t, a.Loop(), a2.Loop())
	assert.NotSame(t, a.Loop(), b.Loop())
	assert.Equal(t, []string{"a", "b"}, m.Active())

	_, err = m.GetOrCreate("")
	assert.Error(t, err)
}

func TestManager_RunPersistsAndReloads(t *testing.T) {
	p := &echoProvider{}
	m, store := newTestManager(t, p, 0)

	res, err := m.Run(context.Background(), "user:1", "hello", agent.TurnOptions{})
	require.NoError(t, err)
	assert.Equal(t, "re: hello", res.Text)

	rec, ok, err := store.Load("user:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, rec.Messages.Messages, 2)
	assert.Equal(t, "hello", rec.Messages.Messages[0].Content)

	// A fresh manager over the same store resumes the conversation.
	m2 := NewManager(store, func(id string, h schema.Messages) *agent.Loop {
		return agent.NewLoop(id, agent.Deps{Provider: p, Settings: schema.NewAgentSettings("echo", 5, 0, 100), Log: zerolog.Nop()}, h)
	}, 0, zerolog.Nop())
	defer m2.Close()
	h, err := m2.History("user:1")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())

	_, err = m2.Run(context.Background(), "user:1", "again", agent.TurnOptions{})
	require.NoError(t, err)
	h, err = m2.History("user:1")
	require.NoError(t, err)
	assert.Equal(t, 4, h.Len())
}

func TestManager_SameSessionTurnsAreSerialized(t *testing.T) {
	p := &echoProvider{gate: make(chan struct{})}
	m, _ := newTestManager(t, p, 0)
	ctx := context.Background()

	first, err := m.Submit(ctx, "s", "one", agent.TurnOptions{})
	require.NoError(t, err)
	second, err := m.Submit(ctx, "s", "two", agent.TurnOptions{})
	require.NoError(t, err)

	// Release both gates; the provider must never see two calls at once.
	p.gate <- struct{}{}
	r1 := <-first
	p.gate <- struct{}{}
	r2 := <-second

	assert.Equal(t, "re: one", r1.Text)
	assert.Equal(t, "re: two", r2.Text)
	assert.Equal(t, int32(1), p.maxSeen.Load())

	h, err := m.History("s")
	require.NoError(t, err)
	contents := make([]string, 0, h.Len())
	for _, msg := range h.Messages {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"one", "re: one", "two", "re: two"}, contents)
}

func TestManager_DifferentSessionsRunConcurrently(t *testing.T) {
	p := &echoProvider{gate: make(chan struct{})}
	m, _ := newTestManager(t, p, 0)
	ctx := context.Background()

	var chans []<-chan agent.TurnResult
	for i := 0; i < 3; i++ {
		ch, err := m.Submit(ctx, fmt.Sprintf("s%d", i), "hi", agent.TurnOptions{})
		require.NoError(t, err)
		chans = append(chans, ch)
	}
	require.Eventually(t, func() bool { return p.inFlight.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	close(p.gate)
	for _, ch := range chans {
		res := <-ch
		assert.Equal(t, "re: hi", res.Text)
	}
}

func TestManager_ClearWaitsForQueuedTurns(t *testing.T) {
	p := &echoProvider{}
	m, store := newTestManager(t, p, 0)
	ctx := context.Background()

	_, err := m.Run(ctx, "s", "remember me", agent.TurnOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx, "s"))

	h, err := m.History("s")
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())

	rec, ok, err := store.Load("s")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, rec.Messages.Len())
}

func TestManager_TrimsHistory(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 4)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := m.Run(ctx, "s", fmt.Sprintf("m%d", i), agent.TurnOptions{})
		require.NoError(t, err)
	}
	h, err := m.History("s")
	require.NoError(t, err)
	require.Equal(t, 4, h.Len())
	assert.Equal(t, "m3", h.Messages[0].Content)
}

func TestManager_CloseRejectsNewWork(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 0)
	m.Close()
	_, err := m.Submit(context.Background(), "s", "late", agent.TurnOptions{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_EvictKeepsHistoryOnDisk(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 0)
	ctx := context.Background()
	_, err := m.Run(ctx, "s", "hi", agent.TurnOptions{})
	require.NoError(t, err)

	m.Evict("s")
	assert.Empty(t, m.Active())

	h, err := m.History("s")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
}

func TestTrimHistory(t *testing.T) {
	sys := schema.NewSystemMessage("sys")
	u := func(s string) schema.Message { return schema.NewUserMessage(s) }
	a := func(s string) schema.Message { return schema.NewAssistantMessage(s, nil) }
	call := schema.NewAssistantMessage("", []schema.ToolCall{{ID: "c", Name: "t"}})
	res := schema.NewToolResultMessage("c", "t", "out")

	tests := []struct {
		name  string
		in    []schema.Message
		limit int
		want  []string
	}{
		{"under limit", []schema.Message{u("1"), a("2")}, 4, []string{"1", "2"}},
		{"keeps system", []schema.Message{sys, u("1"), a("2"), u("3"), a("4")}, 3, []string{"sys", "3", "4"}},
		{"drops orphaned tool result", []schema.Message{u("1"), call, res, a("2"), u("3"), a("4")}, 4, []string{"3", "4"}},
		{"no limit", []schema.Message{u("1"), a("2")}, 0, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := trimHistory(schema.NewMessages(tt.in...), tt.limit)
			var got []string
			for _, m := range out.Messages {
				got = append(got, m.Content)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrimHistory_TurnLongerThanLimitKeepsTail(t *testing.T) {
	msgs := []schema.Message{schema.NewUserMessage("research this")}
	for i := 0; i < 21; i++ {
		id := fmt.Sprintf("c%d", i)
		msgs = append(msgs,
			schema.NewAssistantMessage("", []schema.ToolCall{{ID: id, Name: "web_fetch"}}),
			schema.NewToolResultMessage(id, "web_fetch", "page"),
		)
	}
	msgs = append(msgs, schema.NewAssistantMessage("final answer", nil))
	require.Len(t, msgs, 44)

	out := trimHistory(schema.NewMessages(msgs...), DefaultMaxHistory).Messages
	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), DefaultMaxHistory)
	assert.Equal(t, "final answer", out[len(out)-1].Content)
	assert.NotEqual(t, schema.RoleTool, out[0].Role)

	requested := map[string]bool{}
	for _, m := range out {
		for _, c := range m.ToolCalls {
			requested[c.ID] = true
		}
		if m.Role == schema.RoleTool {
			assert.True(t, requested[m.ToolCallID], "orphaned result %s", m.ToolCallID)
		}
	}
}

func TestManager_ConcurrentSubmitsAllComplete(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 200)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Run(ctx, "shared", "x", agent.TurnOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	h, err := m.History("shared")
	require.NoError(t, err)
	assert.Equal(t, 40, h.Len())
}

func TestManager_RunBackground(t *testing.T) {
	m, _ := newTestManager(t, &echoProvider{}, 0)
	text, err := m.RunBackground(context.Background(), "heartbeat", "[HEARTBEAT] tasks")
	require.NoError(t, err)
	assert.Equal(t, "re: [HEARTBEAT] tasks", text)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/agent"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("session manager closed")

// DefaultMaxHistory bounds the persisted conversation length.
const DefaultMaxHistory = 40

// LoopFactory builds the agent loop for a newly created session.
type LoopFactory func(id string, history schema.Messages) *agent.Loop

// Manager owns every live Session. Sessions are created lazily on first
// use, reloaded from the store when a history file exists, and live for
// the rest of the process unless evicted.
//
// A message for a busy session is queued behind the running turn; nothing
// is rejected.
type Manager struct {
	store      *Store
	newLoop    LoopFactory
	maxHistory int
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(store *Store, newLoop LoopFactory, maxHistory int, log zerolog.Logger) *Manager {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{
		store:      store,
		newLoop:    newLoop,
		maxHistory: maxHistory,
		log:        log,
		sessions:   map[string]*Session{},
	}
}

// GetOrCreate returns the session for id, creating it on first use.
// Exactly one Session (and agent loop) exists per id.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	history := schema.NewMessages()
	createdAt := time.Now()
	if m.store != nil {
		rec, ok, err := m.store.Load(id)
		if err != nil {
			m.log.Warn().Err(err).Str("session", id).Msg("cannot load session history, starting fresh")
		} else if ok {
			history = rec.Messages
			if !rec.CreatedAt.IsZero() {
				createdAt = rec.CreatedAt
			}
		}
	}

	s := newSession(id, m.newLoop(id, history), createdAt)
	m.sessions[id] = s
	m.log.Info().Str("session", id).Int("history", history.Len()).Msg("session created")
	return s, nil
}

// Submit queues a turn and returns a channel that receives its result.
// It blocks only while the session queue is full.
func (m *Manager) Submit(ctx context.Context, id, text string, opts agent.TurnOptions) (<-chan agent.TurnResult, error) {
	s, err := m.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	out := make(chan agent.TurnResult, 1)
	err = s.enqueue(job{ctx: ctx, fn: func(ctx context.Context) {
		out <- m.runTurn(ctx, s, text, opts)
	}})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Run submits a turn and waits for it to finish.
func (m *Manager) Run(ctx context.Context, id, text string, opts agent.TurnOptions) (agent.TurnResult, error) {
	ch, err := m.Submit(ctx, id, text, opts)
	if err != nil {
		return agent.TurnResult{}, err
	}
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return agent.TurnResult{}, ctx.Err()
	}
}

// RunBackground runs a synthetic turn with no live consumer, as the
// heartbeat and cron services do. A failed turn is reported as an error.
func (m *Manager) RunBackground(ctx context.Context, id, text string) (string, error) {
	res, err := m.Run(ctx, id, text, agent.TurnOptions{})
	if err != nil {
		return "", err
	}
	if res.State == agent.StateFailed {
		return res.Text, res.Err
	}
	return res.Text, nil
}

func (m *Manager) runTurn(ctx context.Context, s *Session, text string, opts agent.TurnOptions) agent.TurnResult {
	if err := ctx.Err(); err != nil {
		return agent.TurnResult{State: agent.StateFailed, Err: err}
	}
	start := time.Now()
	res := s.loop.Run(ctx, text, opts)

	history := trimHistory(s.loop.History(), m.maxHistory)
	s.loop.Replace(history)
	m.persist(s, history)

	m.log.Info().
		Str("session", s.ID).
		Stringer("state", res.State).
		Int("iterations", res.Iterations).
		Int("tool_calls", res.ToolCalls).
		Dur("elapsed", time.Since(start)).
		Msg("turn finished")
	return res
}

func (m *Manager) persist(s *Session, history schema.Messages) {
	if m.store == nil {
		return
	}
	rec := Record{Key: s.ID, Messages: history, CreatedAt: s.CreatedAt, UpdatedAt: time.Now()}
	if err := m.store.Save(rec); err != nil {
		m.log.Error().Err(err).Str("session", s.ID).Msg("cannot persist session")
	}
}

// Clear empties the history of id after any queued turns finish.
func (m *Manager) Clear(ctx context.Context, id string) error {
	done, err := m.ClearAsync(ctx, id)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearAsync queues the history reset behind any pending turns and returns
// a channel closed once it has run.
func (m *Manager) ClearAsync(ctx context.Context, id string) (<-chan struct{}, error) {
	s, err := m.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	err = s.enqueue(job{ctx: ctx, fn: func(context.Context) {
		defer close(done)
		s.loop.Reset()
		m.persist(s, schema.NewMessages())
		m.log.Info().Str("session", id).Msg("session cleared")
	}})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// History returns a snapshot of the conversation for id. Unknown ids are
// read from the store without creating a live session.
func (m *Manager) History(id string) (schema.Messages, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s.loop.History(), nil
	}
	if m.store == nil {
		return schema.NewMessages(), nil
	}
	rec, _, err := m.store.Load(id)
	if err != nil {
		return schema.Messages{}, err
	}
	return rec.Messages, nil
}

// Active lists ids of live sessions, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns persisted sessions, most recent first.
func (m *Manager) List() ([]Info, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.List()
}

// Evict drains and drops the live session for id. Its history stays on
// disk and is reloaded on next use.
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
		m.log.Info().Str("session", id).Msg("session evicted")
	}
}

// Close stops accepting work and waits for every queued turn to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.close()
		}()
	}
	wg.Wait()
}

// trimHistory keeps at most limit messages, preserving a leading system
// message. The kept tail starts at a user message when it holds one, and
// never starts with tool results orphaned from the assistant message that
// requested them.
func trimHistory(h schema.Messages, limit int) schema.Messages {
	msgs := h.Messages
	if limit <= 0 || len(msgs) <= limit {
		return h
	}
	var head []schema.Message
	if len(msgs) > 0 && msgs[0].Role == schema.RoleSystem {
		head = msgs[:1]
		msgs = msgs[1:]
		limit--
	}
	tail := msgs[len(msgs)-limit:]
	if i := firstUser(tail); i >= 0 {
		tail = tail[i:]
	} else {
		// One turn outgrew the limit: keep its latest steps.
		for len(tail) > 0 && tail[0].Role == schema.RoleTool {
			tail = tail[1:]
		}
	}
	out := make([]schema.Message, 0, len(head)+len(tail))
	out = append(out, head...)
	out = append(out, tail...)
	return schema.NewMessages(out...)
}

func firstUser(msgs []schema.Message) int {
	for i, m := range msgs {
		if m.Role == schema.RoleUser {
			return i
		}
	}
	return -1
}

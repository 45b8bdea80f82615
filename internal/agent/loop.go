package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/schema"
	"github.com/MithilSaiReddy/bujji/internal/shared/llmutils"
	"github.com/MithilSaiReddy/bujji/internal/tools"
)

const (
	// DefaultMaxIter bounds LLM round trips within one turn.
	DefaultMaxIter = 20

	emptyAnswer = "I've completed processing but have no response to give."
)

// Deps are the collaborators shared by every Loop.
type Deps struct {
	Provider  schema.LLMProvider
	Registry  *tools.Registry
	Assembler *Assembler
	Settings  schema.AgentSettings
	Workspace string
	Config    *config.Config
	Log       zerolog.Logger
}

// TurnOptions carry the per-turn consumer hooks. Both may be nil.
type TurnOptions struct {
	// Events receives streaming events. When nil the LLM is called in
	// non-streaming mode.
	Events chan<- schema.Event
	// Send lets tools push text to the user mid-turn.
	Send func(ctx context.Context, text string) error
}

// TurnResult summarises a finished turn.
type TurnResult struct {
	Text       string
	State      State // StateDone or StateFailed
	Err        error
	Iterations int
	ToolCalls  int
}

// Loop runs turns for a single session. It owns that session's history and
// must not be run concurrently; the session manager serialises calls.
type Loop struct {
	sessionID string
	deps      Deps

	mu      sync.Mutex
	history schema.Messages
	state   State
}

func NewLoop(sessionID string, deps Deps, history schema.Messages) *Loop {
	if deps.Settings.MaxIter <= 0 {
		deps.Settings.MaxIter = DefaultMaxIter
	}
	return &Loop{
		sessionID: sessionID,
		deps:      deps,
		history:   history.Clone(),
		state:     StateIdle,
	}
}

func (l *Loop) SessionID() string { return l.sessionID }

// State returns the current state machine position.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// History returns a copy of the conversation so far.
func (l *Loop) History() schema.Messages {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history.Clone()
}

// Reset clears the conversation.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = schema.NewMessages()
	l.state = StateIdle
}

// Replace swaps the conversation for h (used after trimming).
func (l *Loop) Replace(h schema.Messages) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = h.Clone()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.deps.Log.Debug().Str("session", l.sessionID).Stringer("state", s).Msg("agent state")
}

// record applies add to the history under the loop's lock.
func (l *Loop) record(add func(h *schema.Messages)) {
	l.mu.Lock()
	add(&l.history)
	l.mu.Unlock()
}

// Run processes one user message to completion. The returned result is
// always usable: LLM failures end the turn with a user-visible message
// appended to history rather than an error return.
func (l *Loop) Run(ctx context.Context, userText string, opts TurnOptions) TurnResult {
	l.setState(StateThinking)
	l.record(func(h *schema.Messages) { h.AddUser(userText) })

	tc := tools.ToolContext{
		Workspace: l.deps.Workspace,
		SessionID: l.sessionID,
		Config:    l.deps.Config,
		Send:      opts.Send,
	}

	if l.deps.Registry != nil {
		if report, err := l.deps.Registry.Refresh(ctx); err != nil {
			l.deps.Log.Warn().Err(err).Msg("tool refresh failed")
		} else if report.Changed() {
			l.deps.Log.Info().
				Strs("loaded", report.Loaded).
				Strs("removed", report.Removed).
				Int("failed", len(report.Failed)).
				Msg("tool registry refreshed")
		}
	}

	res := TurnResult{}
	for res.Iterations < l.deps.Settings.MaxIter {
		res.Iterations++

		comp, err := l.complete(ctx, opts.Events)
		if err != nil {
			return l.fail(ctx, opts, res, err)
		}

		content := llmutils.StripThink(comp.Content)
		if !comp.HasToolCalls() {
			if content == "" {
				content = emptyAnswer
			}
			l.record(func(h *schema.Messages) { h.AddAssistant(content, nil) })
			return l.finish(ctx, opts, res, content, nil)
		}

		l.setState(StateToolDispatch)
		l.record(func(h *schema.Messages) { h.AddAssistant(content, comp.ToolCalls) })
		l.deps.Log.Info().
			Str("session", l.sessionID).
			Str("tools", llmutils.ToolHints(comp.ToolCalls)).
			Int("iteration", res.Iterations).
			Msg("dispatching tools")

		for i, call := range comp.ToolCalls {
			if err := ctx.Err(); err != nil {
				l.answerSkipped(comp.ToolCalls[i:])
				return l.fail(ctx, opts, res, err)
			}
			result := l.dispatch(ctx, call, tc)
			res.ToolCalls++
			l.record(func(h *schema.Messages) { h.AddToolResult(call.ID, call.Name, result) })
			schema.Emit(ctx, opts.Events, schema.Event{
				Kind:       schema.EventToolCallDone,
				SessionID:  l.sessionID,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Arguments:  call.RawArguments,
				Result:     result,
				Executed:   true,
			})
		}
		l.setState(StateThinking)
	}

	text := fmt.Sprintf("I've reached the maximum number of tool iterations (%d) without a final answer. "+
		"Try breaking the task into smaller steps.", l.deps.Settings.MaxIter)
	l.record(func(h *schema.Messages) { h.AddAssistant(text, nil) })
	l.deps.Log.Warn().Str("session", l.sessionID).Int("max_iter", l.deps.Settings.MaxIter).Msg("iteration cap reached")
	return l.finish(ctx, opts, res, text, schema.ErrIterationLimit)
}

// complete issues one LLM request with a freshly assembled prompt.
// Provider events are tagged with the session id before forwarding.
func (l *Loop) complete(ctx context.Context, events chan<- schema.Event) (schema.Completion, error) {
	l.mu.Lock()
	history := l.history.Clone()
	l.mu.Unlock()

	msgs := history
	if l.deps.Assembler != nil {
		msgs = l.deps.Assembler.Build(history)
	}
	var defs []map[string]any
	if l.deps.Registry != nil {
		defs = l.deps.Registry.Definitions()
	}
	s := l.deps.Settings
	opts := schema.NewChatOptions(s.Model, s.MaxTokens, s.Temperature, events != nil)

	if events == nil {
		return l.deps.Provider.Complete(ctx, msgs, defs, opts, nil)
	}

	relay := make(chan schema.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range relay {
			ev.SessionID = l.sessionID
			schema.Emit(ctx, events, ev)
		}
	}()
	comp, err := l.deps.Provider.Complete(ctx, msgs, defs, opts, relay)
	close(relay)
	<-done
	return comp, err
}

// answerSkipped records a result for calls that never ran, so every
// tool_call id in history keeps its matching tool message.
func (l *Loop) answerSkipped(calls []schema.ToolCall) {
	l.record(func(h *schema.Messages) {
		for _, call := range calls {
			h.AddToolResult(call.ID, call.Name, "[TOOL ERROR] cancelled before the tool ran")
		}
	})
}

// dispatch runs one tool call and returns the text fed back to the LLM.
// Every failure becomes a "[TOOL ERROR]" result so the model can react.
func (l *Loop) dispatch(ctx context.Context, call schema.ToolCall, tc tools.ToolContext) string {
	log := l.deps.Log.With().Str("session", l.sessionID).Str("tool", call.Name).Str("call_id", call.ID).Logger()

	if call.ArgsErr != nil {
		log.Warn().Err(call.ArgsErr).Msg("malformed tool arguments")
		return "[TOOL ERROR] invalid arguments: " + call.ArgsErr.Error()
	}
	if l.deps.Registry == nil {
		return "[TOOL ERROR] unknown tool: " + call.Name
	}

	res, err := l.deps.Registry.Invoke(ctx, call.Name, call.Arguments, tc)
	switch {
	case errors.Is(err, schema.ErrToolNotFound):
		log.Warn().Msg("unknown tool requested")
		return "[TOOL ERROR] unknown tool: " + call.Name
	case err != nil:
		log.Warn().Err(err).Msg("tool failed")
	case res.Truncated:
		log.Debug().Int("omitted", res.Omitted).Msg("tool output truncated")
	}
	return res.Output
}

func (l *Loop) finish(ctx context.Context, opts TurnOptions, res TurnResult, text string, err error) TurnResult {
	l.setState(StateDone)
	res.State = StateDone
	res.Text = text
	res.Err = err
	schema.Emit(ctx, opts.Events, schema.Event{
		Kind:      schema.EventTurnComplete,
		SessionID: l.sessionID,
		Text:      text,
		Err:       err,
	})
	l.setState(StateIdle)
	return res
}

func (l *Loop) fail(ctx context.Context, opts TurnOptions, res TurnResult, err error) TurnResult {
	text := "⚠️ " + userFacingError(err)
	l.record(func(h *schema.Messages) { h.AddAssistant(text, nil) })
	l.deps.Log.Error().Err(err).Str("session", l.sessionID).Int("iteration", res.Iterations).Msg("turn failed")

	l.setState(StateFailed)
	res.State = StateFailed
	res.Text = text
	res.Err = err
	schema.Emit(ctx, opts.Events, schema.Event{
		Kind:      schema.EventTurnComplete,
		SessionID: l.sessionID,
		Text:      text,
		Err:       err,
	})
	l.setState(StateIdle)
	return res
}

func userFacingError(err error) string {
	var llmErr *schema.LLMError
	switch {
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	case errors.As(err, &llmErr) && llmErr.Status == 401:
		return "The LLM provider rejected the API key. Check your configuration."
	case errors.As(err, &llmErr):
		return "The LLM provider returned an error: " + llmErr.Message
	}
	return "Sorry, I encountered an error calling the LLM: " + err.Error()
}

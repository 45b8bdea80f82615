package agent

import (
	"context"
	"sync"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// scriptedProvider replays one step per Complete call.
type scriptedProvider struct {
	mu    sync.Mutex
	steps []func(events chan<- schema.Event) (schema.Completion, error)
	calls []providerCall
}

type providerCall struct {
	msgs schema.Messages
	defs []map[string]any
	opts schema.ChatOptions
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

func (p *scriptedProvider) Complete(ctx context.Context, msgs schema.Messages, defs []map[string]any, opts schema.ChatOptions, events chan<- schema.Event) (schema.Completion, error) {
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{msgs: msgs.Clone(), defs: defs, opts: opts})
	idx := len(p.calls) - 1
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return schema.Completion{}, err
	}
	if idx >= len(p.steps) {
		return schema.Completion{Content: "out of script"}, nil
	}
	return p.steps[idx](events)
}

func (p *scriptedProvider) Calls() []providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]providerCall(nil), p.calls...)
}

func answer(text string) func(chan<- schema.Event) (schema.Completion, error) {
	return func(events chan<- schema.Event) (schema.Completion, error) {
		schema.Emit(context.Background(), events, schema.Event{Kind: schema.EventTextDelta, Text: text})
		return schema.Completion{Content: text, FinishReason: "stop"}, nil
	}
}

func callTool(calls ...schema.ToolCall) func(chan<- schema.Event) (schema.Completion, error) {
	return func(chan<- schema.Event) (schema.Completion, error) {
		return schema.Completion{ToolCalls: calls, FinishReason: "tool_calls"}, nil
	}
}

func failWith(err error) func(chan<- schema.Event) (schema.Completion, error) {
	return func(chan<- schema.Event) (schema.Completion, error) {
		return schema.Completion{}, err
	}
}

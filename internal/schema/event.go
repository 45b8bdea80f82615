package schema

import (
	"context"
	"sync"
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventTextDelta carries a fragment of the assistant's answer in Text.
	EventTextDelta EventKind = iota + 1
	// EventToolCallStarted announces a tool call (ToolCallID, ToolName, Index).
	EventToolCallStarted
	// EventToolCallDelta carries an argument fragment in Arguments.
	EventToolCallDelta
	// EventToolCallDone reports a fully assembled call. Arguments holds the
	// complete argument text. Emitted again by the agent loop after the
	// tool ran, with Result set.
	EventToolCallDone
	// EventTurnComplete carries the final answer of a turn in Text, or the
	// user-visible failure message with Err set.
	EventTurnComplete
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventToolCallStarted:
		return "tool_call_started"
	case EventToolCallDelta:
		return "tool_call_delta"
	case EventToolCallDone:
		return "tool_call_done"
	case EventTurnComplete:
		return "turn_complete"
	}
	return "unknown"
}

// Event is one item on a streaming event channel.
type Event struct {
	Kind       EventKind
	SessionID  string
	Text       string
	ToolCallID string
	ToolName   string
	Index      int
	Arguments  string
	Result     string
	Executed   bool // EventToolCallDone: true once the tool has run
	Err        error
}

// Emit delivers ev on ch unless ch is nil or ctx ends first.
func Emit(ctx context.Context, ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// Collector accumulates events; handy for tests and headless callers.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Run drains ch into the collector until ch is closed.
func (c *Collector) Run(ch <-chan Event) {
	for ev := range ch {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

// Events returns a snapshot of what has been collected so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

package schema

import "context"

// ChatOptions configures a single LLM chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// Stream requests an incremental response. Without it the client
	// performs one blocking request and emits no deltas.
	Stream bool
}

func NewChatOptions(model string, maxTokens int, temperature float64, stream bool) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

// Completion is the assembled result of one LLM request.
type Completion struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        map[string]int // "prompt_tokens", "completion_tokens", "total_tokens"
}

// HasToolCalls reports whether the completion requests at least one tool call.
func (c Completion) HasToolCalls() bool { return len(c.ToolCalls) > 0 }

// LLMProvider is the interface every LLM backend must satisfy.
//
// Complete sends messages plus tool definitions and returns the assembled
// completion. When events is non-nil, incremental events are delivered on
// it while the response is consumed; the channel is never closed by the
// provider.
type LLMProvider interface {
	Complete(ctx context.Context, messages Messages, tools []map[string]any, opts ChatOptions, events chan<- Event) (Completion, error)
	DefaultModel() string
}

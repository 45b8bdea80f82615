package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/schema"
	"github.com/MithilSaiReddy/bujji/internal/sse"
)

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// pendingCall accumulates the fragments of one streamed tool call.
type pendingCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
	done  bool
}

// streamAssembler turns chunk deltas into events and the final Completion.
// A call is finalized when a higher index appears or the stream finishes.
type streamAssembler struct {
	ctx     context.Context
	events  chan<- schema.Event
	text    strings.Builder
	calls   map[int]*pendingCall
	order   []int
	finish  string
	usage   map[string]int
	emitted bool
}

func newStreamAssembler(ctx context.Context, events chan<- schema.Event) *streamAssembler {
	return &streamAssembler{ctx: ctx, events: events, calls: map[int]*pendingCall{}}
}

func (a *streamAssembler) emit(ev schema.Event) {
	a.emitted = true
	schema.Emit(a.ctx, a.events, ev)
}

func (a *streamAssembler) addChunk(ch chatCompletionChunk) {
	if ch.Usage != nil {
		a.usage = map[string]int{
			"prompt_tokens":     ch.Usage.PromptTokens,
			"completion_tokens": ch.Usage.CompletionTokens,
			"total_tokens":      ch.Usage.TotalTokens,
		}
	}
	for _, choice := range ch.Choices {
		if choice.Delta.Content != "" {
			a.text.WriteString(choice.Delta.Content)
			a.emit(schema.Event{Kind: schema.EventTextDelta, Text: choice.Delta.Content})
		}
		for _, frag := range choice.Delta.ToolCalls {
			a.addFragment(frag.Index, frag.ID, frag.Function.Name, frag.Function.Arguments)
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			a.finish = *choice.FinishReason
		}
	}
}

func (a *streamAssembler) addFragment(index int, id, name, args string) {
	pc, ok := a.calls[index]
	if !ok {
		// A new index closes every lower one still open.
		for _, i := range a.order {
			if i < index {
				a.finalize(a.calls[i])
			}
		}
		pc = &pendingCall{index: index}
		a.calls[index] = pc
		a.order = append(a.order, index)
	}
	if id != "" && pc.id == "" {
		pc.id = id
	}
	if name != "" && pc.name == "" {
		pc.name = name
		a.emit(schema.Event{
			Kind:       schema.EventToolCallStarted,
			ToolCallID: pc.id,
			ToolName:   pc.name,
			Index:      index,
		})
	}
	if args != "" {
		pc.args.WriteString(args)
		a.emit(schema.Event{
			Kind:       schema.EventToolCallDelta,
			ToolCallID: pc.id,
			ToolName:   pc.name,
			Index:      index,
			Arguments:  args,
		})
	}
}

func (a *streamAssembler) finalize(pc *pendingCall) {
	if pc == nil || pc.done {
		return
	}
	pc.done = true
	tc := newToolCall(pc.id, pc.name, pc.args.String())
	pc.id = tc.ID
	a.emit(schema.Event{
		Kind:       schema.EventToolCallDone,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Index:      pc.index,
		Arguments:  tc.RawArguments,
	})
}

func (a *streamAssembler) completion() schema.Completion {
	sort.Ints(a.order)
	var toolCalls []schema.ToolCall
	for _, i := range a.order {
		pc := a.calls[i]
		if pc.name == "" {
			continue
		}
		a.finalize(pc)
		toolCalls = append(toolCalls, newToolCall(pc.id, pc.name, pc.args.String()))
	}
	finish := a.finish
	if finish == "" {
		finish = "stop"
		if len(toolCalls) > 0 {
			finish = "tool_calls"
		}
	}
	return schema.Completion{
		Content:      a.text.String(),
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage:        a.usage,
	}
}

// readStream consumes an SSE body until [DONE] or EOF.
func (c *Client) readStream(ctx context.Context, body io.Reader, events chan<- schema.Event) (schema.Completion, bool, error) {
	asm := newStreamAssembler(ctx, events)
	reader := sse.NewReader(body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return schema.Completion{}, asm.emitted, &schema.LLMError{
				Message:   "stream interrupted",
				Transient: true,
				Cause:     err,
			}
		}
		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.cfg.log.Debug().Err(err).Str("data", truncateForError(data, 200)).Msg("skipping undecodable stream chunk")
			continue
		}
		if chunk.Error != nil {
			return schema.Completion{}, asm.emitted, &schema.LLMError{
				Message:   chunk.Error.Message,
				Transient: !asm.emitted,
			}
		}
		asm.addChunk(chunk)
	}
	if ctx.Err() != nil {
		return schema.Completion{}, asm.emitted, ctx.Err()
	}
	return asm.completion(), asm.emitted, nil
}

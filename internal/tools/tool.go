package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// ToolContext is handed to context-aware handlers for the duration of one
// call. Config is shared and must be treated as read-only.
type ToolContext struct {
	Workspace string
	SessionID string
	Config    *config.Config
	// Send pushes text to whoever is driving the session (chat, terminal).
	// Nil when the turn has no live consumer.
	Send func(ctx context.Context, text string) error
}

// PlainFunc is a handler that needs nothing beyond its arguments.
type PlainFunc func(ctx context.Context, args map[string]any) (string, error)

// ContextFunc is a handler that also receives the per-call ToolContext.
type ContextFunc func(ctx context.Context, tc ToolContext, args map[string]any) (string, error)

// Handler is one of the two handler variants. Build it with Plain or
// WithContext; the zero value is not callable.
type Handler struct {
	plain   PlainFunc
	withCtx ContextFunc
}

func Plain(fn PlainFunc) Handler { return Handler{plain: fn} }

func WithContext(fn ContextFunc) Handler { return Handler{withCtx: fn} }

// WantsContext reports whether the handler is the context-aware variant.
func (h Handler) WantsContext() bool { return h.withCtx != nil }

func (h Handler) valid() bool { return h.plain != nil || h.withCtx != nil }

func (h Handler) call(ctx context.Context, tc ToolContext, args map[string]any) (string, error) {
	if h.withCtx != nil {
		return h.withCtx(ctx, tc, args)
	}
	if h.plain != nil {
		return h.plain(ctx, args)
	}
	return "", fmt.Errorf("tool has no handler")
}

// Definition pairs an advertised spec with its handler.
type Definition struct {
	Spec    schema.ToolSpec
	Handler Handler
}

// Describer is the metadata half shared by Tool and ContextTool.
type Describer interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
}

// Tool is a built-in tool with a plain handler.
type Tool interface {
	Describer
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// ContextTool is a built-in tool that needs the ToolContext.
type ContextTool interface {
	Describer
	ExecuteWithContext(ctx context.Context, tc ToolContext, params map[string]any) (string, error)
}

// SourceBuiltin tags tools registered in code.
const SourceBuiltin = "builtin"

func specOf(d Describer) schema.ToolSpec {
	return schema.ToolSpec{
		Name:        d.Name(),
		Description: d.Description(),
		Parameters:  d.Parameters(),
		Source:      SourceBuiltin,
	}
}

// Define wraps a Tool as a plain Definition.
func Define(t Tool) Definition {
	return Definition{Spec: specOf(t), Handler: Plain(t.Execute)}
}

// DefineWithContext wraps a ContextTool as a context-aware Definition.
func DefineWithContext(t ContextTool) Definition {
	return Definition{Spec: specOf(t), Handler: WithContext(t.ExecuteWithContext)}
}

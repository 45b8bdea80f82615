package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/memory"
)

// ReadMemoryTool returns the content of USER.md.
type ReadMemoryTool struct {
	doc *memory.Document
}

func NewReadMemoryTool(doc *memory.Document) *ReadMemoryTool { return &ReadMemoryTool{doc: doc} }

func (t *ReadMemoryTool) Name() string { return "read_user_memory" }
func (t *ReadMemoryTool) Description() string {
	return "Read USER.md, your persistent memory about the user. Call this when you need context " +
		"about who the user is, their projects or their preferences."
}
func (t *ReadMemoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ReadMemoryTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	content, err := t.doc.Read()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "(USER.md is empty)", nil
	}
	return content, nil
}

// UpdateMemoryTool replaces USER.md as a whole.
type UpdateMemoryTool struct {
	doc *memory.Document
}

func NewUpdateMemoryTool(doc *memory.Document) *UpdateMemoryTool { return &UpdateMemoryTool{doc: doc} }

func (t *UpdateMemoryTool) Name() string { return "update_user_memory" }
func (t *UpdateMemoryTool) Description() string {
	return "Update USER.md, your persistent memory about the user. Call this whenever the user shares " +
		"something worth remembering. Pass the COMPLETE new content: existing facts plus the new ones, " +
		"written as natural Markdown."
}
func (t *UpdateMemoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {
				"type": "string",
				"description": "The full new content for USER.md. Use Markdown headings and bullet points."
			}
		},
		"required": ["content"]
	}`)
}

func (t *UpdateMemoryTool) Execute(_ context.Context, params map[string]any) (string, error) {
	content, _ := params["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("content is required")
	}
	if err := t.doc.Replace(content); err != nil {
		return "", err
	}
	return fmt.Sprintf("USER.md updated (%d chars)", len(content)), nil
}

// RememberTool appends a single fact to USER.md.
type RememberTool struct {
	doc *memory.Document
}

func NewRememberTool(doc *memory.Document) *RememberTool { return &RememberTool{doc: doc} }

func (t *RememberTool) Name() string { return "remember" }
func (t *RememberTool) Description() string {
	return "Append one short fact about the user to USER.md without rewriting the rest."
}
func (t *RememberTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fact": {"type": "string", "description": "The fact to remember, one line"}
		},
		"required": ["fact"]
	}`)
}

func (t *RememberTool) Execute(_ context.Context, params map[string]any) (string, error) {
	fact, _ := params["fact"].(string)
	fact = strings.TrimSpace(strings.ReplaceAll(fact, "\n", " "))
	if fact == "" {
		return "", fmt.Errorf("fact is required")
	}
	if !strings.HasPrefix(fact, "- ") {
		fact = "- " + fact
	}
	if err := t.doc.Append(fact); err != nil {
		return "", err
	}
	return "Remembered.", nil
}

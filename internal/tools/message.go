package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessageTool pushes a message to the user mid-turn, through whatever
// connector is driving the session.
type MessageTool struct{}

func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) Name() string { return "message" }
func (t *MessageTool) Description() string {
	return "Send a message to the user right away, before your final answer. " +
		"Use it for progress updates during long tasks."
}
func (t *MessageTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "The message content to send"}
		},
		"required": ["content"]
	}`)
}

func (t *MessageTool) ExecuteWithContext(ctx context.Context, tc ToolContext, params map[string]any) (string, error) {
	content, _ := params["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content is required")
	}
	if tc.Send == nil {
		return "", fmt.Errorf("no live channel for session %q", tc.SessionID)
	}
	if err := tc.Send(ctx, content); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	return "Message sent.", nil
}

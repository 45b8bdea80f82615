package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

type clientConfig struct {
	name         string
	apiKey       string
	apiBase      string
	model        string
	extraHeaders map[string]string
	anthropic    bool
	timeout      time.Duration
	retry        RetryPolicy
	log          zerolog.Logger
}

// Client talks to any OpenAI-compatible /chat/completions endpoint,
// streaming or not, and retries transient failures.
type Client struct {
	cfg        clientConfig
	httpClient *http.Client
}

func newClient(cfg clientConfig) *Client {
	cfg.apiBase = strings.TrimRight(cfg.apiBase, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.timeout},
	}
}

func (c *Client) DefaultModel() string { return c.cfg.model }

// Name returns the registry name of the backend.
func (c *Client) Name() string { return c.cfg.name }

// APIBase returns the effective base URL.
func (c *Client) APIBase() string { return c.cfg.apiBase }

// Complete implements schema.LLMProvider.
//
// Transient failures (connection errors, 429, 5xx, an interrupted stream
// that has not surfaced any event yet) are retried per the retry policy.
// Anything else, including exhausted retries, is returned wrapped in
// schema.ErrLLMFatal.
func (c *Client) Complete(
	ctx context.Context,
	messages schema.Messages,
	tools []map[string]any,
	opts schema.ChatOptions,
	events chan<- schema.Event,
) (schema.Completion, error) {
	payload, model, err := c.buildPayload(messages, tools, opts)
	if err != nil {
		return schema.Completion{}, fmt.Errorf("%w: %w", schema.ErrLLMFatal, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.retry.backoff(attempt - 1)
			c.cfg.log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Int("max_retries", c.cfg.retry.MaxRetries).
				Dur("wait", wait).
				Msg("transient LLM error, retrying")
			if err := sleepWithContext(ctx, wait); err != nil {
				return schema.Completion{}, err
			}
		}

		comp, emitted, err := c.once(ctx, payload, opts.Stream, events)
		if err == nil {
			c.cfg.log.Debug().
				Str("model", model).
				Int("tool_calls", len(comp.ToolCalls)).
				Str("finish", comp.FinishReason).
				Msg("completion done")
			return comp, nil
		}
		if ctx.Err() != nil {
			return schema.Completion{}, ctx.Err()
		}
		if !errors.Is(err, schema.ErrLLMTransient) {
			return schema.Completion{}, err
		}
		if emitted {
			return schema.Completion{}, fmt.Errorf("%w: stream failed after partial output: %w", schema.ErrLLMFatal, err)
		}
		lastErr = err
	}
	return schema.Completion{}, fmt.Errorf("%w: retries exhausted: %w", schema.ErrLLMFatal, lastErr)
}

// once performs a single HTTP exchange. emitted reports whether any event
// reached the caller before a failure.
func (c *Client) once(ctx context.Context, payload []byte, stream bool, events chan<- schema.Event) (schema.Completion, bool, error) {
	url := c.cfg.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return schema.Completion{}, false, &schema.LLMError{Message: "build request", Cause: err}
	}
	c.setHeaders(req, stream)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return schema.Completion{}, false, &schema.LLMError{
			Message:   "cannot connect to " + url,
			Transient: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return schema.Completion{}, false, &schema.LLMError{
			Status:    resp.StatusCode,
			Message:   friendlyHTTPError(resp.StatusCode, raw),
			Transient: isRetryableStatus(resp.StatusCode),
		}
	}

	if stream {
		return c.readStream(ctx, resp.Body, events)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.Completion{}, false, &schema.LLMError{Message: "read response", Transient: true, Cause: err}
	}
	comp, err := parseOpenAIResponse(raw)
	if err != nil {
		return schema.Completion{}, false, &schema.LLMError{Message: err.Error()}
	}
	return comp, false, nil
}

func (c *Client) setHeaders(req *http.Request, stream bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.apiKey)
	if c.cfg.anthropic {
		req.Header.Set("x-api-key", c.cfg.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range c.cfg.extraHeaders {
		req.Header.Set(k, v)
	}
}

func (c *Client) buildPayload(messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) ([]byte, string, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model":       model,
		"messages":    sanitizeMessages(messages),
		"max_tokens":  maxTokens,
		"temperature": opts.Temperature,
		"stream":      opts.Stream,
	}
	if len(tools) > 0 {
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, model, fmt.Errorf("marshal request: %w", err)
	}
	return data, model, nil
}

// messageToWireMap converts a typed Message to the OpenAI wire-format map.
func messageToWireMap(m schema.Message) map[string]any {
	wire := map[string]any{
		"role":    m.Role,
		"content": m.Content,
	}
	switch m.Role {
	case schema.RoleAssistant:
		if len(m.ToolCalls) > 0 {
			// Strict providers want null content on tool-call-only messages.
			if m.Content == "" {
				wire["content"] = nil
			}
			raw := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				raw[i] = tc.ToWireMap()
			}
			wire["tool_calls"] = raw
		}
	case schema.RoleTool:
		wire["tool_call_id"] = m.ToolCallID
		if m.ToolName != "" {
			wire["name"] = m.ToolName
		}
	}
	return wire
}

func sanitizeMessages(messages schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		out = append(out, messageToWireMap(m))
	}
	return out
}

// openAIRespBody models a non-streaming chat completion response.
type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseOpenAIResponse(raw []byte) (schema.Completion, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.Completion{}, fmt.Errorf("parse response: %w", err)
	}
	if len(body.Choices) == 0 {
		return schema.Completion{}, fmt.Errorf("empty choices in response")
	}

	msg := body.Choices[0].Message
	content, _ := msg.Content.(string)

	var toolCalls []schema.ToolCall
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, newToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}

	finish := body.Choices[0].FinishReason
	if finish == "" {
		finish = "stop"
	}

	return schema.Completion{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: map[string]int{
			"prompt_tokens":     body.Usage.PromptTokens,
			"completion_tokens": body.Usage.CompletionTokens,
			"total_tokens":      body.Usage.TotalTokens,
		},
	}, nil
}

// newToolCall parses the assembled argument text. Unparseable arguments
// are kept verbatim and flagged rather than failing the completion.
func newToolCall(id, name, rawArgs string) schema.ToolCall {
	if id == "" {
		id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	}
	tc := schema.ToolCall{ID: id, Name: name, RawArguments: rawArgs}
	args, err := repairJSON(rawArgs)
	if err != nil {
		tc.Arguments = map[string]any{}
		tc.ArgsErr = err
		return tc
	}
	tc.Arguments = args
	return tc
}

// repairJSON attempts to unmarshal a JSON object, retrying after fixing
// the truncation some models produce at the end of tool arguments.
func repairJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	}

	// Attempt 1: missing closing brace.
	stripped := strings.TrimRight(raw, " \t\n\r}")
	if err := json.Unmarshal([]byte(stripped+"}"), &out); err == nil {
		return out, nil
	}

	// Attempt 2: trailing garbage after the last complete object.
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if err := json.Unmarshal([]byte(raw[:i+1]), &out); err == nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("malformed tool arguments: %q", truncateForError(raw, 200))
}

func friendlyHTTPError(code int, body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	if code == http.StatusTooManyRequests {
		return "rate limit exceeded"
	}
	return truncateForError(strings.TrimSpace(string(body)), 400)
}

func truncateForError(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package llmutils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens a string to at most n runes, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolHint generates a short hint for a tool call, e.g. `web_search("weather in London")`.
// The first string argument in key order is shown.
func ToolHint(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstVal string
	for _, k := range keys {
		if s, ok := args[k].(string); ok && s != "" {
			firstVal = s
			break
		}
	}
	if firstVal == "" {
		return name
	}
	return fmt.Sprintf("%s(%q)", name, Truncate(firstVal, 40))
}

// ToolHints joins the hints of several calls.
func ToolHints(tcs []schema.ToolCall) string {
	parts := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		parts = append(parts, ToolHint(tc.Name, tc.Arguments))
	}
	return strings.Join(parts, ", ")
}

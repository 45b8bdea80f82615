package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownToTelegramHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bold", "**hi** and __there__", "<b>hi</b> and <b>there</b>"},
		{"strike", "~~old~~", "<s>old</s>"},
		{"escape", "a < b & c", "a &lt; b &amp; c"},
		{"header", "## Title", "Title"},
		{"bullet", "- one\n* two", "• one\n• two"},
		{"link", "[site](https://example.com)", `<a href="https://example.com">site</a>`},
		{"inline code", "run `a<b`", "run <code>a&lt;b</code>"},
		{"code block", "```go\nx := **y**\n```", "<pre><code>x := **y**\n</code></pre>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markdownToTelegramHTML(tt.in))
		})
	}
}

func TestParseChatID(t *testing.T) {
	id, err := parseChatID("-100123")
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), id)

	_, err = parseChatID("abc")
	assert.Error(t, err)
}

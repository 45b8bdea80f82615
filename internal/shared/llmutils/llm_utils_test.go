package llmutils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

func TestStripThink(t *testing.T) {
	assert.Equal(t, "answer", StripThink("<think>hmm\nlet me see</think>\nanswer"))
	assert.Equal(t, "plain", StripThink("plain"))
}

func TestToolHints(t *testing.T) {
	tcs := []schema.ToolCall{
		{Name: "web_search", Arguments: map[string]any{"query": "weather in London", "count": 3.0}},
		{Name: "list_dir", Arguments: map[string]any{}},
	}
	assert.Equal(t, `web_search("weather in London"), list_dir`, ToolHints(tcs))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "hé...", Truncate("héllo", 2))
}

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) []Event {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var out []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, *ev)
	}
}

func TestReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "data only",
			input: "data: {\"a\":1}\n\ndata: [DONE]\n\n",
			want:  []Event{{Data: `{"a":1}`}, {Data: "[DONE]"}},
		},
		{
			name:  "comments and blank lines are skipped",
			input: ": keep-alive\n\n\n\ndata: x\n\n",
			want:  []Event{{Data: "x"}},
		},
		{
			name:  "multi-line data joined",
			input: "event: message\nid: 7\ndata: one\ndata: two\n\n",
			want:  []Event{{Type: "message", ID: "7", Data: "one\ntwo"}},
		},
		{
			name:  "crlf line endings",
			input: "data: hi\r\n\r\n",
			want:  []Event{{Data: "hi"}},
		},
		{
			name:  "trailing event without blank line",
			input: "data: tail",
			want:  []Event{{Data: "tail"}},
		},
		{
			name:  "no space after colon",
			input: "data:{\"b\":2}\n\n",
			want:  []Event{{Data: `{"b":2}`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readAll(t, tt.input))
		})
	}
}

package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandGuard(t *testing.T) {
	ws := t.TempDir()
	strict, err := NewCommandGuard([]string{`\bcurl\b`}, true)
	require.NoError(t, err)
	loose, err := NewCommandGuard(nil, false)
	require.NoError(t, err)

	tests := []struct {
		name    string
		guard   *CommandGuard
		command string
		blocked bool
	}{
		{"plain", loose, "ls -la", false},
		{"rm -rf", loose, "rm -rf /", true},
		{"fork bomb", loose, ":(){ :|:& };:", true},
		{"shutdown", loose, "sudo shutdown now", true},
		{"extra deny", strict, "curl example.com", true},
		{"traversal", strict, "cat ../secret", true},
		{"outside path", strict, "cat /etc/passwd", true},
		{"inside path", strict, "cat " + filepath.Join(ws, "a.txt"), false},
		{"absolute ok when loose", loose, "cat /etc/hostname", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.guard.Check(tt.command, ws)
			if tt.blocked {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err = NewCommandGuard([]string{"("}, false)
	assert.Error(t, err)
}

func TestExecTool(t *testing.T) {
	ws := t.TempDir()
	tool := NewExecTool(ws, 5, nil)

	out, err := tool.Execute(context.Background(), map[string]any{"command": "pwd"})
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(ws)
	assert.Contains(t, []string{ws + "\n", resolved + "\n"}, out)

	out, err = tool.Execute(context.Background(), map[string]any{"command": "echo err >&2; exit 2"})
	require.NoError(t, err)
	assert.Contains(t, out, "STDERR:\nerr")
	assert.Contains(t, out, "Exit code: 2")

	_, err = tool.Execute(context.Background(), map[string]any{"command": "rm -rf /tmp/x"})
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestWithinDir(t *testing.T) {
	assert.True(t, withinDir("/a/b", "/a"))
	assert.True(t, withinDir("/a", "/a"))
	assert.False(t, withinDir("/ab", "/a"))
	assert.False(t, withinDir("/", "/a"))
}

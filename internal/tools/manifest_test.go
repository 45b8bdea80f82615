package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadManifest(t *testing.T, body string) []Definition {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	src := NewManifestSource(dir, t.TempDir(), nil, 5*time.Second)
	units, err := src.Scan()
	require.NoError(t, err)
	require.Len(t, units, 1)
	defs, err := src.Load(units[0])
	require.NoError(t, err)
	return defs
}

func TestManifest_ToolsList(t *testing.T) {
	defs := loadManifest(t, `
tools:
  - name: shout
    description: Upper-case a word
    parameters:
      type: object
      properties:
        word: {type: string}
      required: [word]
    command: printf '%s' "$BUJJI_ARG_WORD" | tr a-z A-Z
  - name: stdin_echo
    command: cat
`)
	require.Len(t, defs, 2)
	assert.Equal(t, "shout", defs[0].Spec.Name)
	assert.JSONEq(t, `{"type":"object","properties":{"word":{"type":"string"}},"required":["word"]}`, string(defs[0].Spec.Parameters))
	assert.False(t, defs[0].Handler.WantsContext())

	out, err := defs[0].Handler.call(context.Background(), ToolContext{}, map[string]any{"word": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	out, err = defs[1].Handler.call(context.Background(), ToolContext{}, map[string]any{"n": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, out)
}

func TestManifest_ContextVariantExportsSession(t *testing.T) {
	defs := loadManifest(t, `
name: where
context: true
command: echo "$BUJJI_SESSION@$BUJJI_WORKSPACE"
`)
	require.Len(t, defs, 1)
	assert.True(t, defs[0].Handler.WantsContext())

	ws := t.TempDir()
	out, err := defs[0].Handler.call(context.Background(), ToolContext{SessionID: "tg:42", Workspace: ws}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tg:42@"+ws+"\n", out)
}

func TestManifest_NonZeroExitIsError(t *testing.T) {
	defs := loadManifest(t, "name: fail\ncommand: echo nope >&2; exit 3\n")
	_, err := defs[0].Handler.call(context.Background(), ToolContext{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 3")
	assert.Contains(t, err.Error(), "nope")
}

func TestManifest_Timeout(t *testing.T) {
	defs := loadManifest(t, "name: slow\ntimeout: 1\ncommand: sleep 5\n")
	start := time.Now()
	_, err := defs[0].Handler.call(context.Background(), ToolContext{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no tools", "description: nothing\n"},
		{"bad name", "name: 'has space'\ncommand: 'true'\n"},
		{"no command", "name: ok\n"},
		{"bad yaml", "name: [x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "x.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			src := NewManifestSource(dir, "", nil, 0)
			_, err := src.Load(Unit{ID: path})
			assert.Error(t, err)
		})
	}
}

func TestManifest_ScanSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.yaml", "b.YML", "notes.md", ".hidden.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	units, err := NewManifestSource(dir, "", nil, 0).Scan()
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, filepath.Join(dir, "a.yaml"), units[0].ID)

	units, err = NewManifestSource(filepath.Join(dir, "missing"), "", nil, 0).Scan()
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestArgEnv(t *testing.T) {
	env := argEnv(map[string]any{"file-name": "a.txt", "count": float64(2), "opts": map[string]any{"x": true}})
	assert.Equal(t, []string{
		"BUJJI_ARG_COUNT=2",
		"BUJJI_ARG_FILE_NAME=a.txt",
		`BUJJI_ARG_OPTS={"x":true}`,
	}, env)
}

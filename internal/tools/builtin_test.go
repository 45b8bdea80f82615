package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/config/tool"
	"github.com/MithilSaiReddy/bujji/internal/memory"
)

type fakeCron struct {
	jobs []CronJobSummary
}

func (f *fakeCron) ListJobs() ([]CronJobSummary, error) { return f.jobs, nil }

func (f *fakeCron) AddJob(name, prompt string, interval int) error {
	for _, j := range f.jobs {
		if j.Name == name {
			return errors.New("exists")
		}
	}
	f.jobs = append(f.jobs, CronJobSummary{Name: name, Prompt: prompt, IntervalMinutes: interval})
	return nil
}

func (f *fakeCron) RemoveJob(name string) (bool, error) {
	for i, j := range f.jobs {
		if j.Name == name {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newBuiltinRegistry(t *testing.T, restrict bool) (*Registry, string, *fakeCron) {
	t.Helper()
	ws := t.TempDir()
	fc := &fakeCron{}
	r := NewRegistry(zerolog.Nop())
	require.NoError(t, r.RegisterAll(Builtins(BuiltinDeps{
		Workspace:           ws,
		RestrictToWorkspace: restrict,
		Tools:               tool.DefaultToolConfigs(),
		Memory:              memory.UserDocument(ws),
		Cron:                fc,
	})...))
	return r, ws, fc
}

func invoke(t *testing.T, r *Registry, name string, args map[string]any) Result {
	t.Helper()
	res, err := r.Invoke(context.Background(), name, args, ToolContext{})
	require.NoError(t, err)
	return res
}

func TestBuiltins_AllRegistered(t *testing.T) {
	r, _, _ := newBuiltinRegistry(t, false)
	var names []string
	for _, s := range r.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"cron", "delete_file", "edit_file", "exec", "get_time", "list_dir", "message",
		"read_file", "read_user_memory", "remember", "update_user_memory",
		"web_fetch", "web_search", "write_file",
	}, names)
}

func TestBuiltins_FileRoundTrip(t *testing.T) {
	r, ws, _ := newBuiltinRegistry(t, true)

	res := invoke(t, r, "write_file", map[string]any{"path": "notes/todo.txt", "content": "buy milk"})
	require.NoError(t, res.Err)
	assert.FileExists(t, filepath.Join(ws, "notes", "todo.txt"))

	res = invoke(t, r, "write_file", map[string]any{"path": "notes/todo.txt", "content": "\ncall mom", "append": true})
	require.NoError(t, res.Err)

	res = invoke(t, r, "read_file", map[string]any{"path": "notes/todo.txt"})
	assert.Equal(t, "buy milk\ncall mom", res.Output)

	res = invoke(t, r, "edit_file", map[string]any{"path": "notes/todo.txt", "old_text": "milk", "new_text": "bread"})
	require.NoError(t, res.Err)
	res = invoke(t, r, "read_file", map[string]any{"path": "notes/todo.txt"})
	assert.Equal(t, "buy bread\ncall mom", res.Output)

	res = invoke(t, r, "list_dir", map[string]any{})
	assert.Contains(t, res.Output, "[D] notes")

	res = invoke(t, r, "delete_file", map[string]any{"path": "notes"})
	require.NoError(t, res.Err)
	_, err := os.Stat(filepath.Join(ws, "notes"))
	assert.True(t, os.IsNotExist(err))

	res = invoke(t, r, "read_file", map[string]any{"path": "/etc/hostname"})
	assert.Contains(t, res.Output, "[TOOL ERROR]")
	assert.Contains(t, res.Output, "outside allowed directory")
}

func TestBuiltins_Memory(t *testing.T) {
	r, ws, _ := newBuiltinRegistry(t, false)

	res := invoke(t, r, "read_user_memory", nil)
	assert.Equal(t, "(USER.md is empty)", res.Output)

	res = invoke(t, r, "update_user_memory", map[string]any{"content": "# User\nName: Mithil"})
	require.NoError(t, res.Err)
	res = invoke(t, r, "remember", map[string]any{"fact": "prefers Go"})
	require.NoError(t, res.Err)

	data, err := os.ReadFile(filepath.Join(ws, memory.UserFile))
	require.NoError(t, err)
	assert.Equal(t, "# User\nName: Mithil\n- prefers Go\n", string(data))

	res = invoke(t, r, "update_user_memory", map[string]any{"content": "  "})
	assert.Contains(t, res.Output, "[TOOL ERROR]")
}

func TestBuiltins_FileToolsKeepMemoryBackup(t *testing.T) {
	r, ws, _ := newBuiltinRegistry(t, true)
	userMD := filepath.Join(ws, memory.UserFile)
	backup := userMD + ".bak"

	res := invoke(t, r, "write_file", map[string]any{"path": memory.UserFile, "content": "Name: Mithil\n"})
	require.NoError(t, res.Err)
	res = invoke(t, r, "write_file", map[string]any{"path": memory.UserFile, "content": "Likes: Go\n", "append": true})
	require.NoError(t, res.Err)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "Name: Mithil\n", string(data))

	res = invoke(t, r, "edit_file", map[string]any{"path": memory.UserFile, "old_text": "Go", "new_text": "Rust"})
	require.NoError(t, res.Err)

	data, err = os.ReadFile(userMD)
	require.NoError(t, err)
	assert.Equal(t, "Name: Mithil\nLikes: Rust\n", string(data))
	data, err = os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "Name: Mithil\nLikes: Go\n", string(data))

	res = invoke(t, r, "edit_file", map[string]any{"path": memory.UserFile, "old_text": "Python", "new_text": "x"})
	assert.Contains(t, res.Output, "old_text not found")
	data, _ = os.ReadFile(userMD)
	assert.Equal(t, "Name: Mithil\nLikes: Rust\n", string(data))
}

func TestBuiltins_Cron(t *testing.T) {
	r, _, fc := newBuiltinRegistry(t, false)

	res := invoke(t, r, "cron", map[string]any{"action": "list"})
	assert.Equal(t, "No scheduled jobs.", res.Output)

	res = invoke(t, r, "cron", map[string]any{"action": "add", "name": "news", "prompt": "summarise news", "interval_minutes": float64(1440)})
	require.NoError(t, res.Err)
	require.Len(t, fc.jobs, 1)
	assert.Equal(t, 1440, fc.jobs[0].IntervalMinutes)

	res = invoke(t, r, "cron", map[string]any{"action": "add", "name": "hourly", "prompt": "check"})
	require.NoError(t, res.Err)
	assert.Equal(t, 60, fc.jobs[1].IntervalMinutes)

	res = invoke(t, r, "cron", map[string]any{"action": "list"})
	assert.Contains(t, res.Output, "news (every 1440 min, last run: never)")

	res = invoke(t, r, "cron", map[string]any{"action": "remove", "name": "news"})
	assert.Equal(t, "Removed job news", res.Output)

	res = invoke(t, r, "cron", map[string]any{"action": "explode"})
	assert.Contains(t, res.Output, "[TOOL ERROR]")
}

func TestBuiltins_MessageUsesSend(t *testing.T) {
	r, _, _ := newBuiltinRegistry(t, false)

	var sent []string
	tc := ToolContext{SessionID: "cli", Send: func(_ context.Context, text string) error {
		sent = append(sent, text)
		return nil
	}}
	res, err := r.Invoke(context.Background(), "message", map[string]any{"content": "working on it"}, tc)
	require.NoError(t, err)
	assert.Equal(t, "Message sent.", res.Output)
	assert.Equal(t, []string{"working on it"}, sent)

	res, err = r.Invoke(context.Background(), "message", map[string]any{"content": "x"}, ToolContext{SessionID: "cron"})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "no live channel")
}

func TestTimeTool(t *testing.T) {
	tool := NewTimeTool()
	tool.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	out, err := tool.Execute(context.Background(), map[string]any{"tz": "UTC"})
	require.NoError(t, err)
	assert.Equal(t, "Sunday, 01 March 2026 12:00:00 UTC", out)

	_, err = tool.Execute(context.Background(), map[string]any{"tz": "Mars/Olympus"})
	assert.Error(t, err)
}

package heartbeat

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
)

type recordingRunner struct {
	sessions []string
	texts    []string
	reply    string
	err      error
}

func (r *recordingRunner) RunBackground(_ context.Context, sessionID, text string) (string, error) {
	r.sessions = append(r.sessions, sessionID)
	r.texts = append(r.texts, text)
	return r.reply, r.err
}

func TestHasActiveTasks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"only heading", "# HEARTBEAT\n\n## Tasks\n", false},
		{"comment", "<!-- add tasks below -->\n", false},
		{"multi-line comment", "<!--\nCheck the weather\n-->\n", false},
		{"empty checkbox", "# Tasks\n- [ ]\n", false},
		{"plain task", "# Tasks\nCheck the weather in Hyderabad\n", true},
		{"pending checkbox", "- [ ] water the plants", true},
		{"text after comment", "<!-- note --> summarise email", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasActiveTasks(tt.content))
		})
	}
}

func TestTick_SubmitsPromptToDesignatedSession(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("Check disk space\n"), 0o644))
	r := &recordingRunner{reply: "HEARTBEAT_OK"}
	s := NewService(ws, r, 0, "", zerolog.Nop())

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	require.Len(t, r.texts, 1)
	assert.Equal(t, []string{DefaultSession}, r.sessions)
	assert.Equal(t, "[HEARTBEAT] Please execute the periodic tasks listed in HEARTBEAT.md:\n\nCheck disk space\n\nReply HEARTBEAT_OK when all tasks are complete.", r.texts[0])
	assert.Equal(t, DefaultInterval, s.Interval())
}

func TestTick_SkipsMissingOrEmptyFile(t *testing.T) {
	ws := t.TempDir()
	r := &recordingRunner{}
	s := NewService(ws, r, time.Minute, "hb", zerolog.Nop())

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("# HEARTBEAT\n<!-- nothing -->\n"), 0o644))
	ran, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, r.texts)
}

func TestTick_ReportsRunnerError(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("do it"), 0o644))
	r := &recordingRunner{err: errors.New("boom")}
	s := NewService(ws, r, time.Minute, "hb", zerolog.Nop())

	ran, err := s.Tick(context.Background())
	assert.True(t, ran)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"hb"}, r.sessions)
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := NewService(t.TempDir(), &recordingRunner{}, time.Hour, "", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

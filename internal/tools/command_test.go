package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Output(t *testing.T) {
	out, err := runCommand(context.Background(), commandSpec{Command: "echo hi; echo oops >&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out.Stdout)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, out.String(), "Exit code: 3")
}

func TestRunCommand_TimeoutKillsDescendants(t *testing.T) {
	// sh cannot exec sleep here, so sleep runs as its child and inherits
	// the output pipes.
	start := time.Now()
	_, err := runCommand(context.Background(), commandSpec{
		Command: "sleep 5; echo finished",
		Timeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunCommand_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := runCommand(ctx, commandSpec{Command: "sleep 5 & sleep 5; wait"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 3*time.Second)
}

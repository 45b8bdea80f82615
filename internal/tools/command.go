package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the command
// was killed.
const waitDelay = 2 * time.Second

type commandSpec struct {
	Command string
	Dir     string
	Stdin   []byte
	Env     []string // appended to the process environment
	Timeout time.Duration
}

type commandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// String renders the output the way tool results present it.
func (o commandOutput) String() string {
	var parts []string
	if o.Stdout != "" {
		parts = append(parts, o.Stdout)
	}
	if strings.TrimSpace(o.Stderr) != "" {
		parts = append(parts, "STDERR:\n"+o.Stderr)
	}
	if o.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("\nExit code: %d", o.ExitCode))
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}

// runCommand runs spec.Command through sh -c. A non-zero exit is reported
// in the output, not as an error; timeouts and spawn failures are errors.
func runCommand(ctx context.Context, spec commandSpec) (commandOutput, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	setProcGroup(cmd)
	cmd.Cancel = func() error { return killProcGroup(cmd) }
	// Descendants that escaped the group can still hold the output pipes.
	cmd.WaitDelay = waitDelay
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != nil {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return commandOutput{}, fmt.Errorf("command timed out after %v", spec.Timeout)
		}
		return commandOutput{}, ctx.Err()
	}

	out := commandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return commandOutput{}, fmt.Errorf("run command: %w", runErr)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	return out, nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-[rf]{1,2}\b`),            // rm -r, rm -rf, rm -fr
	regexp.MustCompile(`(?i)\bdel\s+/[fq]\b`),                // del /f, del /q
	regexp.MustCompile(`(?i)\brmdir\s+/s\b`),                 // rmdir /s
	regexp.MustCompile(`(?i)(?:^|[;&|]\s*)format\b`),         // format (standalone)
	regexp.MustCompile(`(?i)\b(mkfs|diskpart)\b`),            // disk ops
	regexp.MustCompile(`(?i)\bdd\s+if=`),                     // dd
	regexp.MustCompile(`(?i)>\s*/dev/sd`),                    // write to disk
	regexp.MustCompile(`(?i)\b(shutdown|reboot|poweroff)\b`), // power control
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),                // fork bomb
}

// CommandGuard rejects dangerous shell commands before they run.
type CommandGuard struct {
	deny                []*regexp.Regexp
	restrictToWorkspace bool
}

// NewCommandGuard compiles extraDeny on top of the built-in deny list.
// Invalid extra patterns are returned as an error.
func NewCommandGuard(extraDeny []string, restrictToWorkspace bool) (*CommandGuard, error) {
	g := &CommandGuard{
		deny:                append([]*regexp.Regexp(nil), denyPatterns...),
		restrictToWorkspace: restrictToWorkspace,
	}
	for _, p := range extraDeny {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("deny pattern %q: %w", p, err)
		}
		g.deny = append(g.deny, re)
	}
	return g, nil
}

// Check returns a non-nil error when command must not run in cwd.
func (g *CommandGuard) Check(command, cwd string) error {
	lower := strings.ToLower(strings.TrimSpace(command))
	for _, p := range g.deny {
		if p.MatchString(lower) {
			return fmt.Errorf("command blocked by safety guard (dangerous pattern detected)")
		}
	}
	if !g.restrictToWorkspace {
		return nil
	}

	if strings.Contains(command, `..\`) || strings.Contains(command, "../") {
		return fmt.Errorf("command blocked by safety guard (path traversal detected)")
	}
	cwdResolved, err := filepath.EvalSymlinks(cwd)
	if err != nil {
		cwdResolved = cwd
	}
	for _, raw := range extractAbsolutePaths(command) {
		p, err := filepath.EvalSymlinks(raw)
		if err != nil {
			p = filepath.Clean(raw)
		}
		if filepath.IsAbs(p) && !withinDir(p, cwdResolved) {
			return fmt.Errorf("command blocked by safety guard (path outside working dir)")
		}
	}
	return nil
}

var absolutePathRE = regexp.MustCompile(`(?:^|[\s|>])(/[^\s"'>]+)`)

func extractAbsolutePaths(cmd string) []string {
	matches := absolutePathRE.FindAllStringSubmatch(cmd, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// withinDir reports whether path equals dir or lies below it.
func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ExecTool executes shell commands with safety guards.
type ExecTool struct {
	timeout    time.Duration
	workingDir string
	guard      *CommandGuard
}

// NewExecTool creates an ExecTool. workingDir is the default CWD
// (empty = os.Getwd()); timeoutSeconds <= 0 means 60.
func NewExecTool(workingDir string, timeoutSeconds int, guard *CommandGuard) *ExecTool {
	t := 60
	if timeoutSeconds > 0 {
		t = timeoutSeconds
	}
	if guard == nil {
		guard, _ = NewCommandGuard(nil, false)
	}
	return &ExecTool{
		timeout:    time.Duration(t) * time.Second,
		workingDir: workingDir,
		guard:      guard,
	}
}

func (e *ExecTool) Name() string { return "exec" }
func (e *ExecTool) Description() string {
	return "Execute a shell command and return its output. Use with caution."
}
func (e *ExecTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to execute"
			},
			"working_dir": {
				"type": "string",
				"description": "Optional working directory for the command"
			}
		},
		"required": ["command"]
	}`)
}

func (e *ExecTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	cwd := e.workingDir
	if wd, ok := params["working_dir"].(string); ok && wd != "" {
		cwd = wd
	}
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	if err := e.guard.Check(command, cwd); err != nil {
		return "", err
	}

	out, err := runCommand(ctx, commandSpec{Command: command, Dir: cwd, Timeout: e.timeout})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// manifestTool is one tool declared in a YAML manifest:
//
//	name: disk_usage
//	description: Show disk usage for a path
//	parameters:
//	  type: object
//	  properties:
//	    path: {type: string}
//	command: du -sh "$BUJJI_ARG_PATH"
//	timeout: 30
//
// A file may instead hold a `tools:` list of such entries.
type manifestTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
	Command     string         `yaml:"command"`
	Timeout     int            `yaml:"timeout"` // seconds
	Context     bool           `yaml:"context"`
}

type manifestFile struct {
	Single manifestTool   `yaml:",inline"`
	Tools  []manifestTool `yaml:"tools"`
}

var toolNameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ManifestSource loads command-backed tools from *.yaml / *.yml files in a
// directory. Each file is one reloadable unit.
type ManifestSource struct {
	dir            string
	workspace      string
	guard          *CommandGuard
	defaultTimeout time.Duration
}

func NewManifestSource(dir, workspace string, guard *CommandGuard, defaultTimeout time.Duration) *ManifestSource {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if guard == nil {
		guard, _ = NewCommandGuard(nil, false)
	}
	return &ManifestSource{dir: dir, workspace: workspace, guard: guard, defaultTimeout: defaultTimeout}
}

// Dir returns the watched manifest directory.
func (m *ManifestSource) Dir() string { return m.dir }

// Scan lists manifest files. A missing directory holds no units.
func (m *ManifestSource) Scan() ([]Unit, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var units []Unit
	for _, e := range entries {
		if e.IsDir() || !isManifest(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		units = append(units, Unit{ID: filepath.Join(m.dir, e.Name()), ModTime: info.ModTime()})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

func isManifest(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (m *ManifestSource) Load(u Unit) ([]Definition, error) {
	data, err := os.ReadFile(u.ID)
	if err != nil {
		return nil, err
	}
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(u.ID), err)
	}

	decls := mf.Tools
	if mf.Single.Name != "" {
		decls = append([]manifestTool{mf.Single}, decls...)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("%s declares no tools", filepath.Base(u.ID))
	}

	defs := make([]Definition, 0, len(decls))
	for _, mt := range decls {
		d, err := m.define(mt, u.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(u.ID), err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func (m *ManifestSource) define(mt manifestTool, source string) (Definition, error) {
	if !toolNameRE.MatchString(mt.Name) {
		return Definition{}, fmt.Errorf("invalid tool name %q", mt.Name)
	}
	if strings.TrimSpace(mt.Command) == "" {
		return Definition{}, fmt.Errorf("tool %s: command is required", mt.Name)
	}
	params := mt.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return Definition{}, fmt.Errorf("tool %s: parameters: %w", mt.Name, err)
	}
	timeout := m.defaultTimeout
	if mt.Timeout > 0 {
		timeout = time.Duration(mt.Timeout) * time.Second
	}

	spec := schema.ToolSpec{
		Name:        mt.Name,
		Description: mt.Description,
		Parameters:  raw,
		Source:      source,
	}
	cmd := manifestCommand{command: mt.Command, timeout: timeout, dir: m.workspace, guard: m.guard}
	if mt.Context {
		return Definition{Spec: spec, Handler: WithContext(cmd.runWithContext)}, nil
	}
	return Definition{Spec: spec, Handler: Plain(cmd.run)}, nil
}

type manifestCommand struct {
	command string
	timeout time.Duration
	dir     string
	guard   *CommandGuard
}

func (c manifestCommand) run(ctx context.Context, args map[string]any) (string, error) {
	return c.exec(ctx, c.dir, nil, args)
}

func (c manifestCommand) runWithContext(ctx context.Context, tc ToolContext, args map[string]any) (string, error) {
	dir := c.dir
	if tc.Workspace != "" {
		dir = tc.Workspace
	}
	env := []string{
		"BUJJI_WORKSPACE=" + tc.Workspace,
		"BUJJI_SESSION=" + tc.SessionID,
	}
	return c.exec(ctx, dir, env, args)
}

func (c manifestCommand) exec(ctx context.Context, dir string, env []string, args map[string]any) (string, error) {
	if err := c.guard.Check(c.command, dir); err != nil {
		return "", err
	}
	stdin, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	out, err := runCommand(ctx, commandSpec{
		Command: c.command,
		Dir:     dir,
		Stdin:   stdin,
		Env:     append(argEnv(args), env...),
		Timeout: c.timeout,
	})
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("exit code %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr+out.Stdout))
	}
	return out.String(), nil
}

// argEnv exposes each top-level argument as BUJJI_ARG_<NAME>. Strings are
// passed raw, everything else as JSON.
func argEnv(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		var val string
		switch v := args[k].(type) {
		case string:
			val = v
		default:
			b, _ := json.Marshal(v)
			val = string(b)
		}
		env = append(env, "BUJJI_ARG_"+envName(k)+"="+val)
	}
	return env
}

func envName(k string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(k) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/memory"
)

// resolvePath resolves path against workspace (if relative) and, when
// allowedDir is set, refuses anything that lands outside it.
func resolvePath(path, workspace, allowedDir string) (string, error) {
	p := path
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if !filepath.IsAbs(p) && workspace != "" {
		p = filepath.Join(workspace, p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// may not exist yet (writes)
		resolved = filepath.Clean(p)
	}
	if allowedDir != "" {
		allowed := filepath.Clean(allowedDir)
		if r, err := filepath.EvalSymlinks(allowed); err == nil {
			allowed = r
		}
		if !withinDir(resolved, allowed) {
			return "", fmt.Errorf("path %s is outside allowed directory %s", path, allowedDir)
		}
	}
	return resolved, nil
}

// fileTool carries the path policy shared by the file tools.
type fileTool struct {
	workspace  string
	allowedDir string
	// memory, when set, receives writes aimed at the user memory file so
	// they keep its backup and atomic-rename guarantees.
	memory *memory.Document
}

// memoryTarget reports whether fp is the user memory document.
func (f fileTool) memoryTarget(fp string) bool {
	if f.memory == nil {
		return false
	}
	target := filepath.Clean(f.memory.Path())
	if r, err := filepath.EvalSymlinks(target); err == nil {
		target = r
	}
	return filepath.Clean(fp) == target
}

func (f fileTool) resolve(params map[string]any) (string, string, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	fp, err := resolvePath(path, f.workspace, f.allowedDir)
	return path, fp, err
}

// ReadFileTool reads a file and returns its contents.
type ReadFileTool struct{ fileTool }

func NewReadFileTool(workspace, allowedDir string) *ReadFileTool {
	return &ReadFileTool{fileTool{workspace: workspace, allowedDir: allowedDir}}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file at the given path." }
func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The file path to read (relative to the workspace or absolute)"}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	path, fp, err := t.resolve(params)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(fp)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a file: %s", path)
	}
	data, err := os.ReadFile(fp)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return "(empty file)", nil
	}
	return string(data), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct{ fileTool }

func NewWriteFileTool(workspace, allowedDir string, mem *memory.Document) *WriteFileTool {
	return &WriteFileTool{fileTool{workspace: workspace, allowedDir: allowedDir, memory: mem}}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories if needed. Set append=true to append."
}
func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The file path to write to"},
			"content": {"type": "string", "description": "The content to write"},
			"append": {"type": "boolean", "description": "Append instead of overwrite"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	_, fp, err := t.resolve(params)
	if err != nil {
		return "", err
	}
	content, _ := params["content"].(string)
	appendMode, _ := params["append"].(bool)
	verb := "wrote"
	if appendMode {
		verb = "appended"
	}

	if t.memoryTarget(fp) {
		err := t.memory.Update(func(current string) (string, error) {
			if appendMode {
				return current + content, nil
			}
			return content, nil
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully %s %d bytes to %s", verb, len(content), fp), nil
	}

	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", fmt.Errorf("create directories: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(fp, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fp, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", fp, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully %s %d bytes to %s", verb, len(content), fp), nil
}

// EditFileTool replaces one exact occurrence of old_text with new_text.
type EditFileTool struct{ fileTool }

func NewEditFileTool(workspace, allowedDir string, mem *memory.Document) *EditFileTool {
	return &EditFileTool{fileTool{workspace: workspace, allowedDir: allowedDir, memory: mem}}
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Edit a file by replacing old_text with new_text. The old_text must occur exactly once."
}
func (t *EditFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The file path to edit"},
			"old_text": {"type": "string", "description": "The exact text to find and replace"},
			"new_text": {"type": "string", "description": "The text to replace with"}
		},
		"required": ["path", "old_text", "new_text"]
	}`)
}

func (t *EditFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	path, fp, err := t.resolve(params)
	if err != nil {
		return "", err
	}
	oldText, _ := params["old_text"].(string)
	newText, _ := params["new_text"].(string)
	if oldText == "" {
		return "", fmt.Errorf("old_text is required")
	}

	if t.memoryTarget(fp) {
		err := t.memory.Update(func(current string) (string, error) {
			return replaceOnce(current, oldText, newText, path)
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully edited %s", fp), nil
	}

	data, err := os.ReadFile(fp)
	if err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	edited, err := replaceOnce(string(data), oldText, newText, path)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(fp, []byte(edited), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", fp, err)
	}
	return fmt.Sprintf("Successfully edited %s", fp), nil
}

func replaceOnce(content, oldText, newText, path string) (string, error) {
	switch n := strings.Count(content, oldText); {
	case n == 0:
		return "", fmt.Errorf("old_text not found in %s; read the file and retry with exact text", path)
	case n > 1:
		return "", fmt.Errorf("old_text appears %d times in %s; add surrounding context to make it unique", n, path)
	}
	return strings.Replace(content, oldText, newText, 1), nil
}

// ListDirTool lists directory contents.
type ListDirTool struct{ fileTool }

func NewListDirTool(workspace, allowedDir string) *ListDirTool {
	return &ListDirTool{fileTool{workspace: workspace, allowedDir: allowedDir}}
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the contents of a directory." }
func (t *ListDirTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The directory path to list (default: workspace)"}
		}
	}`)
}

func (t *ListDirTool) Execute(_ context.Context, params map[string]any) (string, error) {
	if p, _ := params["path"].(string); p == "" {
		params = map[string]any{"path": "."}
	}
	path, dp, err := t.resolve(params)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dp)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", path)
	}
	entries, err := os.ReadDir(dp)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		prefix := "[F] "
		if e.IsDir() {
			prefix = "[D] "
		}
		lines = append(lines, prefix+e.Name())
	}
	return strings.Join(lines, "\n"), nil
}

// DeleteFileTool removes a file or a directory tree.
type DeleteFileTool struct{ fileTool }

func NewDeleteFileTool(workspace, allowedDir string) *DeleteFileTool {
	return &DeleteFileTool{fileTool{workspace: workspace, allowedDir: allowedDir}}
}

func (t *DeleteFileTool) Name() string { return "delete_file" }
func (t *DeleteFileTool) Description() string {
	return "Delete a file, or a directory and everything in it."
}
func (t *DeleteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "The file or directory to delete"}
		},
		"required": ["path"]
	}`)
}

func (t *DeleteFileTool) Execute(_ context.Context, params map[string]any) (string, error) {
	path, fp, err := t.resolve(params)
	if err != nil {
		return "", err
	}
	if t.workspace != "" && filepath.Clean(fp) == filepath.Clean(t.workspace) {
		return "", fmt.Errorf("refusing to delete the workspace root")
	}
	info, err := os.Stat(fp)
	if err != nil {
		return "", fmt.Errorf("not found: %s", path)
	}
	if info.IsDir() {
		if err := os.RemoveAll(fp); err != nil {
			return "", fmt.Errorf("delete %s: %w", path, err)
		}
		return fmt.Sprintf("Deleted directory %s", fp), nil
	}
	if err := os.Remove(fp); err != nil {
		return "", fmt.Errorf("delete %s: %w", path, err)
	}
	return fmt.Sprintf("Deleted %s", fp), nil
}

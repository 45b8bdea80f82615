package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	SoulFile      = "SOUL.md"
	IdentityFile  = "IDENTITY.md"
	UserFile      = "USER.md"
	AgentFile     = "AGENT.md"
	HeartbeatFile = "HEARTBEAT.md"
)

const defaultSoul = `# Soul

- Be helpful, honest, and concise.
- Prefer action over lengthy explanation.
- Never fabricate facts. Say "I don't know" rather than guess.
- Respect the user's privacy and autonomy.
- Always complete the task before summarising.
- When something is worth remembering, update USER.md without being asked.
`

const defaultIdentity = `# Identity

You are **bujji**, an ultra-lightweight personal AI assistant.
You are efficient, direct, and a little warm. You don't ramble.

Your tone: concise, capable, occasionally dry. No filler phrases.
`

const defaultUser = `# User

_This file is updated by bujji as it learns about you._
_You can also edit it directly._

No information stored yet.
`

const defaultAgent = `# Agent Capabilities

- **Web search** via Brave Search API
- **File operations**: read, write, list, delete
- **Shell execution**: run any shell command
- **Utilities**: current time, send messages, scheduled jobs
- **Memory**: update USER.md to remember things across sessions

_This file is updated automatically when skills or tools change._
`

const defaultHeartbeat = `# Heartbeat Tasks

<!-- Tasks listed here run every heartbeat interval. Leave empty to skip. -->
`

var defaults = []struct {
	name    string
	content string
}{
	{SoulFile, defaultSoul},
	{IdentityFile, defaultIdentity},
	{UserFile, defaultUser},
	{AgentFile, defaultAgent},
	{HeartbeatFile, defaultHeartbeat},
}

// EnsureWorkspace creates the workspace and any missing identity
// documents with their defaults. Existing files are never touched.
func EnsureWorkspace(workspace string) error {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	for _, d := range defaults {
		path := filepath.Join(workspace, d.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.WriteFile(path, []byte(d.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", d.name, err)
		}
	}
	return nil
}

// ReadDoc returns the trimmed content of a workspace document, or "" when
// it is missing or unreadable.
func ReadDoc(workspace, name string) string {
	data, err := os.ReadFile(filepath.Join(workspace, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// UserDocument returns the Document backing USER.md in workspace.
func UserDocument(workspace string) *Document {
	return NewDocument(filepath.Join(workspace, UserFile))
}

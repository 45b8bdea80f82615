package agent

import (
	"fmt"
	"strings"

	"github.com/MithilSaiReddy/bujji/internal/memory"
	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// ToolLister is the part of the tool registry the assembler reads.
type ToolLister interface {
	List() []schema.ToolSpec
}

// Assembler builds the system prompt from the workspace documents, the
// skills and the live tool list. It holds no per-session state and is
// shared by every loop.
//
// Section order is fixed: values, identity, memory, skills, active tools.
// Nothing time-dependent goes in, so unchanged inputs give a byte-identical
// prompt.
type Assembler struct {
	workspace string
	skills    *SkillCache
	tools     ToolLister
}

func NewAssembler(workspace string, skills *SkillCache, tools ToolLister) *Assembler {
	return &Assembler{workspace: workspace, skills: skills, tools: tools}
}

const sectionSep = "\n\n---\n\n"

// SystemPrompt renders the current system prompt.
func (a *Assembler) SystemPrompt() string {
	var parts []string

	if soul := memory.ReadDoc(a.workspace, memory.SoulFile); soul != "" {
		parts = append(parts, soul)
	}
	parts = append(parts, a.identity())
	if user := memory.ReadDoc(a.workspace, memory.UserFile); user != "" {
		parts = append(parts, user)
	}
	if a.skills != nil {
		if skills := a.skills.Render(); skills != "" {
			parts = append(parts, "# Available Skills\n\n"+skills)
		}
	}
	if a.tools != nil {
		if summary := toolSummary(a.tools.List()); summary != "" {
			parts = append(parts, summary)
		}
	}
	return strings.Join(parts, sectionSep)
}

func (a *Assembler) identity() string {
	var sb strings.Builder
	if id := memory.ReadDoc(a.workspace, memory.IdentityFile); id != "" {
		sb.WriteString(id)
	} else {
		sb.WriteString("You are bujji, a personal AI assistant.")
	}
	fmt.Fprintf(&sb, "\n\nYour workspace is: %s\n", a.workspace)
	sb.WriteString("Use tools when needed. After receiving tool results, synthesize them into a clear, concise answer.")
	if agentDoc := memory.ReadDoc(a.workspace, memory.AgentFile); agentDoc != "" {
		sb.WriteString("\n\n")
		sb.WriteString(agentDoc)
	}
	return sb.String()
}

func toolSummary(specs []schema.ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Active Tools\n")
	for _, s := range specs {
		desc := strings.TrimSpace(strings.SplitN(s.Description, "\n", 2)[0])
		if desc == "" {
			fmt.Fprintf(&sb, "\n- %s", s.Name)
			continue
		}
		fmt.Fprintf(&sb, "\n- %s: %s", s.Name, desc)
	}
	return sb.String()
}

// Build returns the message list for one LLM request: a fresh system
// message followed by history. System messages stored in history are
// dropped in favour of the fresh one.
func (a *Assembler) Build(history schema.Messages) schema.Messages {
	out := schema.NewMessages()
	out.AddSystem(a.SystemPrompt())
	for _, m := range history.Messages {
		if m.Role == schema.RoleSystem {
			continue
		}
		out.Messages = append(out.Messages, m)
	}
	return out
}

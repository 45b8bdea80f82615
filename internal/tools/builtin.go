package tools

import (
	"github.com/MithilSaiReddy/bujji/internal/config/tool"
	"github.com/MithilSaiReddy/bujji/internal/memory"
)

// BuiltinDeps is what the built-in tools need from the rest of the process.
type BuiltinDeps struct {
	Workspace           string
	RestrictToWorkspace bool
	Tools               tool.ToolsConfig
	Memory              *memory.Document
	Guard               *CommandGuard
	Cron                CronScheduler // nil disables the cron tool
}

// Builtins returns the definitions of every tool registered in code.
func Builtins(d BuiltinDeps) []Definition {
	allowed := ""
	if d.RestrictToWorkspace {
		allowed = d.Workspace
	}
	defs := []Definition{
		Define(NewTimeTool()),
		Define(NewExecTool(d.Workspace, d.Tools.Exec.Timeout, d.Guard)),
		Define(NewReadFileTool(d.Workspace, allowed)),
		Define(NewWriteFileTool(d.Workspace, allowed, d.Memory)),
		Define(NewEditFileTool(d.Workspace, allowed, d.Memory)),
		Define(NewListDirTool(d.Workspace, allowed)),
		Define(NewDeleteFileTool(d.Workspace, allowed)),
		Define(NewWebSearchTool(d.Tools.Web.Search.APIKey, d.Tools.Web.Search.MaxResults)),
		Define(NewWebFetchTool(d.Tools.Web.Fetch.MaxChars)),
		DefineWithContext(NewMessageTool()),
	}
	if d.Memory != nil {
		defs = append(defs,
			Define(NewReadMemoryTool(d.Memory)),
			Define(NewUpdateMemoryTool(d.Memory)),
			Define(NewRememberTool(d.Memory)),
		)
	}
	if d.Cron != nil {
		defs = append(defs, Define(NewCronTool(d.Cron)))
	}
	return defs
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/providers"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bujji status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Printf("%s bujji Status\n\n", logo)
	fmt.Printf("Config:    %s %s\n", cfgPath, mark(exists(cfgPath)))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	fmt.Printf("Workspace: %s %s\n", ws, mark(exists(ws)))
	fmt.Printf("Tools dir: %s %s\n", cfg.ToolsDir(), mark(exists(cfg.ToolsDir())))
	if active, ok := cfg.MatchProvider(); ok {
		fmt.Printf("Active:    %s (%s)\n\n", active.Name, active.Model)
	} else {
		fmt.Printf("Active:    none, add an API key to %s\n\n", cfgPath)
	}

	fmt.Println("Providers:")
	for _, spec := range providers.PROVIDERS {
		p := cfg.Providers.ByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		switch {
		case spec.IsLocal:
			if p.APIBase != "" || p.APIKey != "" {
				fmt.Printf("  %-20s ✓ %s\n", label, p.APIBase)
			} else {
				fmt.Printf("  %-20s (not set)\n", label)
			}
		case p.APIKey != "":
			fmt.Printf("  %-20s ✓\n", label)
		default:
			fmt.Printf("  %-20s (not set)\n", label)
		}
	}

	fmt.Println("\nChannels:")
	fmt.Printf("  %-20s %s %s\n", "Telegram", mark(cfg.Channels.Telegram.Enabled), tokenHint(cfg.Channels.Telegram.Token))
	fmt.Printf("  %-20s %s %s\n", "Discord", mark(cfg.Channels.Discord.Enabled), tokenHint(cfg.Channels.Discord.Token))
	fmt.Printf("  %-20s %s %s:%d\n", "Web", mark(cfg.Channels.Web.Enabled), cfg.Channels.Web.Host, cfg.Channels.Web.Port)

	fmt.Println("\nGateway:")
	fmt.Printf("  %-20s %s every %d min\n", "Heartbeat", mark(cfg.Gateway.Heartbeat.Enabled), cfg.Gateway.Heartbeat.IntervalMinutes)
	fmt.Printf("  %-20s %s %s\n", "Cron", mark(cfg.Gateway.Cron.Enabled), cfg.CronPath())
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func tokenHint(s string) string {
	if s == "" {
		return "(not configured)"
	}
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}

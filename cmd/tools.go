package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/container"
	"github.com/MithilSaiReddy/bujji/internal/shared/llmutils"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the agent can call, including manifest tools",
	RunE:  runTools,
}

func runTools(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()

	registry, err := container.NewRegistry(cfg, log)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := registry.Refresh(ctx)
	if err != nil {
		return err
	}

	specs := registry.List()
	fmt.Printf("%-22s %-10s %s\n", "Tool", "Source", "Description")
	fmt.Println(strings.Repeat("-", 88))
	for _, s := range specs {
		desc, _, _ := strings.Cut(s.Description, "\n")
		fmt.Printf("%-22s %-10s %s\n", s.Name, s.Source, llmutils.Truncate(desc, 54))
	}
	fmt.Printf("\n%d tools, manifests from %s\n", len(specs), cfg.ToolsDir())

	if len(report.Failed) > 0 {
		units := make([]string, 0, len(report.Failed))
		for u := range report.Failed {
			units = append(units, u)
		}
		sort.Strings(units)
		fmt.Println("\nManifests that failed to load:")
		for _, u := range units {
			fmt.Printf("  ✗ %s: %v\n", u, report.Failed[u])
		}
	}
	return nil
}

package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/memory"
)

var onboardYes bool

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func init() {
	onboardCmd.Flags().BoolVarP(&onboardYes, "yes", "y", false, "Refresh an existing config without asking")
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	if exists(cfgPath) {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		if !onboardYes {
			fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return err
	}
	fmt.Printf("✓ Config saved at %s\n", cfgPath)

	workspace := cfg.WorkspacePath()
	if err := memory.EnsureWorkspace(workspace); err != nil {
		return err
	}
	for _, dir := range []string{cfg.SkillsDir(), cfg.ToolsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	fmt.Printf("\n%s bujji is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Println("     Get one at: https://openrouter.ai/keys")
	fmt.Println("  2. Chat: bujji agent -m \"Hello!\"")
	fmt.Printf("  3. Drop tool manifests into %s, they load on the next message\n", cfg.ToolsDir())
	return nil
}

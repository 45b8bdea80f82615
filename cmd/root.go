// Package cmd implements the bujji CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/logger"
)

const version = "0.2.0"
const logo = "🛺"

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:           "bujji",
	Short:         logo + " bujji, a personal AI assistant",
	Long:          logo + " bujji is a lightweight personal AI assistant with hot-reloadable tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.bujji/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output is opt-in for the
// interactive commands so log lines do not interleave with the chat.
func newLogger(cfg *config.Config, console bool) (*logger.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	if logLevel != "" {
		lc.Level = logLevel
	}
	lc.File = cfg.Log.File
	lc.Console = console
	return logger.New(lc)
}

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/container"
	"github.com/MithilSaiReddy/bujji/internal/cron"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Manage scheduled jobs",
}

func init() {
	cronCmd.AddCommand(cronListCmd)
	cronCmd.AddCommand(cronAddCmd)
	cronCmd.AddCommand(cronRemoveCmd)
	cronCmd.AddCommand(cronRunCmd)
}

// jobStore opens the jobs file for editing only; nothing is run.
func jobStore(cfg *config.Config) *cron.Service {
	return cron.NewService(cfg.CronPath(), nil, cfg.Gateway.Cron.Session, 0, zerolog.Nop())
}

// ---- list ------------------------------------------------------------------

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		jobs, err := jobStore(cfg).Jobs()
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No scheduled jobs.")
			return nil
		}
		now := time.Now()
		fmt.Printf("%-20s %-10s %-18s %-18s %s\n", "Name", "Every", "Last Run", "Next Run", "Prompt")
		fmt.Println(strings.Repeat("-", 88))
		for _, j := range jobs {
			last, next := "never", "now"
			if j.LastRun != nil {
				last = j.LastRun.Local().Format("2006-01-02 15:04")
				if due := j.LastRun.Add(j.Interval()); due.After(now) {
					next = due.Local().Format("2006-01-02 15:04")
				}
			}
			fmt.Printf("%-20s %-10s %-18s %-18s %s\n",
				truncStr(j.Name, 19), j.Interval(), last, next, truncStr(j.Prompt, 40))
		}
		return nil
	},
}

// ---- add -------------------------------------------------------------------

var (
	cronAddName  string
	cronAddMsg   string
	cronAddEvery int
)

var cronAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a scheduled job",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := jobStore(cfg).AddJob(cronAddName, cronAddMsg, cronAddEvery); err != nil {
			return err
		}
		fmt.Printf("✓ Saved job '%s'\n", cronAddName)
		return nil
	},
}

func init() {
	cronAddCmd.Flags().StringVarP(&cronAddName, "name", "n", "", "Job name (required)")
	cronAddCmd.Flags().StringVarP(&cronAddMsg, "message", "m", "", "Prompt for the agent (required)")
	cronAddCmd.Flags().IntVarP(&cronAddEvery, "every", "e", cron.DefaultIntervalMinutes, "Run every N minutes")

	_ = cronAddCmd.MarkFlagRequired("name")
	_ = cronAddCmd.MarkFlagRequired("message")
}

// ---- remove ----------------------------------------------------------------

var cronRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		removed, err := jobStore(cfg).RemoveJob(args[0])
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("✓ Removed job %s\n", args[0])
		} else {
			fmt.Printf("Job %s not found\n", args[0])
		}
		return nil
	},
}

// ---- run -------------------------------------------------------------------

var cronRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a job now, due or not",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer log.Close()

		c, err := container.New(cfg, log)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := c.CronService().RunJob(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Job executed in session %s\n", cfg.Gateway.Cron.Session)
		return nil
	},
}

// ---- helpers ---------------------------------------------------------------

func truncStr(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

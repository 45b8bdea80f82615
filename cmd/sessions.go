package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MithilSaiReddy/bujji/internal/session"
	"github.com/MithilSaiReddy/bujji/internal/shared/llmutils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect persisted conversations",
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func openSessionStore() (*session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.SessionsDir(), zerolog.Nop())
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		infos, err := store.List()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		fmt.Printf("%-32s %-9s %s\n", "Session", "Messages", "Updated")
		fmt.Println(strings.Repeat("-", 64))
		for _, in := range infos {
			fmt.Printf("%-32s %-9d %s\n", truncStr(in.Key, 31), in.Messages, in.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		rec, ok, err := store.Load(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session %s not found", args[0])
		}
		for _, m := range rec.Messages.Messages {
			switch {
			case m.ToolName != "":
				fmt.Printf("[%s:%s] %s\n", m.Role, m.ToolName, llmutils.Truncate(m.Content, 200))
			case len(m.ToolCalls) > 0:
				fmt.Printf("[%s] → %s\n", m.Role, llmutils.ToolHints(m.ToolCalls))
			default:
				fmt.Printf("[%s] %s\n", m.Role, m.Content)
			}
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a persisted conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openSessionStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted session %s\n", args[0])
		return nil
	},
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MithilSaiReddy/bujji/internal/agent"
	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/channels"
	"github.com/MithilSaiReddy/bujji/internal/container"
	"github.com/MithilSaiReddy/bujji/internal/schema"
	"github.com/MithilSaiReddy/bujji/internal/shared/cmdutils"
	"github.com/MithilSaiReddy/bujji/internal/shared/llmutils"
)

var (
	agentMessage   string
	agentSession   string
	agentLogs      bool
	agentShowTools bool
	agentTimeout   time.Duration
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the agent in the terminal",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
	agentCmd.Flags().StringVarP(&agentSession, "session", "s", bus.RoutingKey(bus.ChannelCLI, bus.ChatIDDirect), "Session ID for --message")
	agentCmd.Flags().BoolVar(&agentLogs, "logs", false, "Show runtime logs")
	agentCmd.Flags().BoolVar(&agentShowTools, "show-tools", true, "Print a line for every tool call")
	agentCmd.Flags().DurationVar(&agentTimeout, "timeout", 5*time.Minute, "Time limit for --message")
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, agentLogs)
	if err != nil {
		return err
	}
	defer log.Close()

	c, err := container.New(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if agentMessage != "" {
		return runSingleMessage(c)
	}
	return runInteractive(c)
}

// runSingleMessage runs one turn directly on the session manager and
// prints the answer.
func runSingleMessage(c *container.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
	defer cancel()

	events := make(chan schema.Event, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if agentShowTools && ev.Kind == schema.EventToolCallDone && ev.Executed {
				cmdutils.PrintToolHint(toolCallHint(ev))
			}
		}
	}()

	res, err := c.Sessions().Run(ctx, agentSession, agentMessage, agent.TurnOptions{
		Events: events,
		Send: func(_ context.Context, text string) error {
			fmt.Printf("\n%s\n", text)
			return nil
		},
	})
	close(events)
	wg.Wait()
	if err != nil {
		return err
	}

	cmdutils.PrintResponse(res.Text)
	if res.State == agent.StateFailed {
		return fmt.Errorf("turn failed: %w", res.Err)
	}
	return nil
}

// runInteractive starts the terminal REPL behind the same bus and
// dispatcher the gateway uses.
func runInteractive(c *container.Container) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := channels.NewCLIChannel(c.MessageBus(), os.Stdin, os.Stdout, agentShowTools, c.Logger().Component("cli"))
	mgr := channels.NewManager(c.MessageBus(), c.Logger().Component("channels"), cli)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Dispatcher().Run(gctx) })
	if c.Config().Tools.Watch {
		g.Go(func() error { return c.Watcher().Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return mgr.StartAll(gctx, true)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func toolCallHint(ev schema.Event) string {
	var args map[string]any
	_ = json.Unmarshal([]byte(ev.Arguments), &args)
	return llmutils.ToolHint(ev.ToolName, args)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MithilSaiReddy/bujji/internal/channels"
	"github.com/MithilSaiReddy/bujji/internal/container"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the chat connectors, heartbeat and scheduled jobs",
	RunE:  runGateway,
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	c, err := container.New(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	b := c.MessageBus()
	var chans []channels.Channel
	if tg := cfg.Channels.Telegram; tg.Enabled {
		chans = append(chans, channels.NewTelegramChannel(&tg, b, log.Component("telegram")))
	}
	if dc := cfg.Channels.Discord; dc.Enabled {
		chans = append(chans, channels.NewDiscordChannel(&dc, b, log.Component("discord")))
	}
	if web := cfg.Channels.Web; web.Enabled {
		chans = append(chans, channels.NewWebChannel(&web, b, channels.WebBackend{
			Tools:  c.Registry().List,
			Memory: c.UserMemory(),
			Clear:  c.Sessions().Clear,
			Status: func() map[string]any {
				return map[string]any{
					"version":  version,
					"provider": c.Provider().Name(),
					"model":    c.Provider().DefaultModel(),
					"sessions": c.Sessions().Active(),
				}
			},
		}, log.Component("web")))
	}
	mgr := channels.NewManager(b, log.Component("channels"), chans...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s Starting bujji gateway (%s, model %s)\n", logo, c.Provider().Name(), c.Provider().DefaultModel())
	if enabled := mgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Warning: no channels enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Dispatcher().Run(gctx) })
	g.Go(func() error { return mgr.StartAll(gctx, false) })
	if cfg.Gateway.Heartbeat.Enabled {
		fmt.Printf("✓ Heartbeat every %s\n", c.Heartbeat().Interval())
		g.Go(func() error { return c.Heartbeat().Start(gctx) })
	}
	if cfg.Gateway.Cron.Enabled {
		g.Go(func() error { return c.CronService().Start(gctx) })
	}
	if cfg.Tools.Watch {
		g.Go(func() error { return c.Watcher().Run(gctx) })
	}

	// Load manifests once up front so problems show at startup.
	if report, err := c.Registry().Refresh(ctx); err != nil {
		toolLog := log.Component("tools")
		toolLog.Warn().Err(err).Msg("initial tool refresh failed")
	} else {
		reportManifestFailures(report.Failed)
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("gateway: %w", err)
	}
	fmt.Println("\nShutdown complete.")
	return nil
}

func reportManifestFailures(failed map[string]error) {
	for unit, err := range failed {
		fmt.Printf("✗ tool manifest %s: %v\n", unit, err)
	}
}


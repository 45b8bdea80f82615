package channels

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/bus"
	"github.com/MithilSaiReddy/bujji/internal/schema"
	"github.com/MithilSaiReddy/bujji/internal/shared/llmutils"
)

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// CLIChannel is the terminal REPL. Answers stream to out as they are
// generated; the next prompt appears once the turn is final.
type CLIChannel struct {
	Base
	in        io.Reader
	out       io.Writer
	showTools bool
	replies   chan bus.OutboundMessage
}

// NewCLIChannel creates a CLIChannel reading in and writing out.
func NewCLIChannel(b bus.Bus, in io.Reader, out io.Writer, showTools bool, log zerolog.Logger) *CLIChannel {
	return &CLIChannel{
		Base:      NewBase(bus.ChannelCLI, b, nil, log),
		in:        in,
		out:       out,
		showTools: showTools,
		replies:   make(chan bus.OutboundMessage, 256),
	}
}

// Start runs the REPL until ctx is cancelled, the input ends or the user
// types an exit command.
func (c *CLIChannel) Start(ctx context.Context) error {
	fmt.Fprintf(c.out, "🛺 bujji ready. Type /help for commands, 'exit' or Ctrl+C to quit.\n\n")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "You: ")
		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out, "\nGoodbye!")
				return nil
			}
			line = strings.TrimSpace(l)
		case <-ctx.Done():
			return ctx.Err()
		}
		if line == "" {
			continue
		}
		if cliExitCommands[strings.ToLower(line)] {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}

		c.HandleMessage(ctx, "user", bus.ChatIDDirect, line, nil)
		if err := c.waitForReply(ctx); err != nil {
			return err
		}
	}
}

// waitForReply renders outbound messages until the final one arrives.
func (c *CLIChannel) waitForReply(ctx context.Context) error {
	streamed := false
	for {
		select {
		case msg := <-c.replies:
			switch msg.Kind() {
			case schema.EventTextDelta:
				if !streamed {
					fmt.Fprint(c.out, "\n🛺 bujji\n")
					streamed = true
				}
				fmt.Fprint(c.out, msg.Event.Text)
			case schema.EventToolCallDone:
				if c.showTools && msg.Event.Executed {
					fmt.Fprintf(c.out, "  \033[2m↳ %s\033[0m\n", toolHint(msg.Event))
				}
			case schema.EventTurnComplete, 0:
				if !msg.Final {
					// Mid-turn notice from the message tool.
					fmt.Fprintf(c.out, "\n%s\n", msg.Content)
					continue
				}
				if streamed {
					fmt.Fprint(c.out, "\n\n")
				} else {
					fmt.Fprintf(c.out, "\n🛺 bujji\n%s\n\n", msg.Content)
				}
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send hands an outbound message to the REPL loop.
func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	select {
	case c.replies <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toolHint(ev *schema.Event) string {
	var args map[string]any
	_ = json.Unmarshal([]byte(ev.Arguments), &args)
	return llmutils.ToolHint(ev.ToolName, args)
}

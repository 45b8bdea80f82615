// Package heartbeat runs the agent against HEARTBEAT.md on a fixed interval
// when the file lists active tasks.
package heartbeat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/memory"
)

const (
	DefaultInterval = 30 * time.Minute
	DefaultSession  = "heartbeat"

	promptTemplate = "[HEARTBEAT] Please execute the periodic tasks listed in HEARTBEAT.md:\n\n%s\n\nReply HEARTBEAT_OK when all tasks are complete."
)

// Runner submits a synthetic message to a session and waits for the turn.
type Runner interface {
	RunBackground(ctx context.Context, sessionID, text string) (string, error)
}

// Service runs a periodic check of HEARTBEAT.md.
type Service struct {
	workspace string
	runner    Runner
	interval  time.Duration
	session   string
	log       zerolog.Logger
}

// NewService creates a heartbeat Service. Zero interval and empty session
// fall back to the defaults.
func NewService(workspace string, runner Runner, interval time.Duration, session string, log zerolog.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if session == "" {
		session = DefaultSession
	}
	return &Service{
		workspace: workspace,
		runner:    runner,
		interval:  interval,
		session:   session,
		log:       log,
	}
}

func (s *Service) Interval() time.Duration { return s.interval }

// Start runs the heartbeat loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Str("session", s.session).Msg("heartbeat started")

	for {
		select {
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Error().Err(err).Msg("heartbeat turn failed")
			}
		case <-ctx.Done():
			s.log.Info().Msg("heartbeat stopped")
			return ctx.Err()
		}
	}
}

// Tick performs one check. It reports whether a turn was submitted.
func (s *Service) Tick(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.workspace, memory.HeartbeatFile))
	if err != nil {
		// No HEARTBEAT.md means nothing is scheduled.
		return false, nil
	}
	content := strings.TrimSpace(string(data))
	if !HasActiveTasks(content) {
		s.log.Debug().Msg("heartbeat: no active tasks")
		return false, nil
	}

	s.log.Info().Msg("heartbeat: active tasks found, running agent")
	reply, err := s.runner.RunBackground(ctx, s.session, Prompt(content))
	if err != nil {
		return true, fmt.Errorf("heartbeat: %w", err)
	}
	if strings.Contains(strings.ToUpper(reply), "HEARTBEAT_OK") {
		s.log.Info().Msg("heartbeat: tasks complete")
	} else {
		s.log.Info().Str("reply", truncate(reply, 200)).Msg("heartbeat: agent replied")
	}
	return true, nil
}

// Prompt wraps HEARTBEAT.md content in the synthetic user message.
func Prompt(content string) string {
	return fmt.Sprintf(promptTemplate, content)
}

// HasActiveTasks reports whether content has at least one line that is not
// blank, a heading, an HTML comment or an unchecked checkbox.
func HasActiveTasks(content string) bool {
	inComment := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if inComment {
			if idx := strings.Index(trimmed, "-->"); idx >= 0 {
				inComment = false
				trimmed = strings.TrimSpace(trimmed[idx+3:])
			} else {
				continue
			}
		}
		if strings.HasPrefix(trimmed, "<!--") {
			end := strings.Index(trimmed, "-->")
			if end < 0 {
				inComment = true
				continue
			}
			trimmed = strings.TrimSpace(trimmed[end+3:])
		}
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#"):
		case trimmed == "- [ ]" || trimmed == "* [ ]":
		default:
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

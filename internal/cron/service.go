// Package cron runs the prompts listed in workspace/cron/jobs.json on their
// per-job intervals.
//
// The file is polled on a fixed tick. A job is due when it never ran or
// when interval_minutes have passed since last_run; missed windows are not
// backfilled, so a job that fell due during downtime runs once on the first
// tick after restart.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/tools"
)

const (
	DefaultTick    = time.Minute
	DefaultSession = "cron"
)

// Runner submits a synthetic message to a session and waits for the turn.
type Runner interface {
	RunBackground(ctx context.Context, sessionID, text string) (string, error)
}

// Service polls jobs.json and submits due jobs. It also implements
// tools.CronScheduler so the agent can edit the job list.
type Service struct {
	path    string
	runner  Runner
	session string
	tick    time.Duration
	log     zerolog.Logger
	now     func() time.Time

	// mu serialises read-modify-write cycles on the jobs file.
	mu sync.Mutex
}

var _ tools.CronScheduler = (*Service)(nil)

// NewService creates a Service for the jobs file at path. runner may be nil
// for callers that only edit jobs.
func NewService(path string, runner Runner, session string, tick time.Duration, log zerolog.Logger) *Service {
	if session == "" {
		session = DefaultSession
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Service{
		path:    path,
		runner:  runner,
		session: session,
		tick:    tick,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) Path() string { return s.path }

// Start polls on the configured tick until ctx is cancelled. A tick that
// is still running when the next one fires is skipped.
func (s *Service) Start(ctx context.Context) error {
	c := robfigcron.New(robfigcron.WithChain(robfigcron.SkipIfStillRunning(cronLogger{s.log})))
	spec := fmt.Sprintf("@every %s", s.tick)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Tick(ctx); err != nil {
			s.log.Warn().Err(err).Msg("cron tick failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule cron tick: %w", err)
	}

	s.log.Info().Str("path", s.path).Dur("tick", s.tick).Str("session", s.session).Msg("cron started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("cron stopped")
	return ctx.Err()
}

// Tick runs every due job in file order and returns the names that ran.
// The file is re-read for each last_run update so edits made while a job
// runs are kept.
func (s *Service) Tick(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	jobs, err := loadJobs(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := s.now()
	var ran []string
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if !job.Due(now) {
			continue
		}
		err := s.run(ctx, job)
		if interrupted(ctx, err) {
			s.log.Warn().Err(err).Str("job", job.Name).Msg("cron job interrupted, last_run kept")
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("job", job.Name).Msg("cron job failed")
		}
		ran = append(ran, job.Name)
	}
	return ran, nil
}

// RunJob runs the named job immediately, due or not.
func (s *Service) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	jobs, err := loadJobs(s.path)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Name == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("cron job %q not found", name)
}

// run submits job and records its start time as last_run, even when the
// turn failed, so a failing job does not fire on every tick. A turn cut
// short by cancellation leaves last_run untouched and the job stays due.
func (s *Service) run(ctx context.Context, job Job) error {
	if s.runner == nil {
		return fmt.Errorf("cron: no runner configured")
	}
	startedAt := s.now()
	s.log.Info().Str("job", job.Name).Msg("cron job firing")
	_, runErr := s.runner.RunBackground(ctx, s.session, job.Prompt)
	if interrupted(ctx, runErr) {
		return runErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := loadJobs(s.path)
	if err != nil {
		return fmt.Errorf("reload jobs: %w", err)
	}
	found := false
	for i := range jobs {
		if jobs[i].Name == job.Name {
			t := startedAt
			jobs[i].LastRun = &t
			found = true
			break
		}
	}
	if found {
		if err := saveJobs(s.path, jobs); err != nil {
			return fmt.Errorf("save jobs: %w", err)
		}
	}
	return runErr
}

// interrupted reports whether err came from ctx ending rather than from the
// turn itself failing.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// Jobs returns the current job list.
func (s *Service) Jobs() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadJobs(s.path)
}

// ListJobs implements tools.CronScheduler.
func (s *Service) ListJobs() ([]tools.CronJobSummary, error) {
	jobs, err := s.Jobs()
	if err != nil {
		return nil, err
	}
	out := make([]tools.CronJobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, tools.CronJobSummary{
			Name:            j.Name,
			Prompt:          j.Prompt,
			IntervalMinutes: j.IntervalMinutes,
			LastRun:         j.LastRun,
		})
	}
	return out, nil
}

// AddJob implements tools.CronScheduler. An existing job with the same
// name is updated in place and keeps its last_run.
func (s *Service) AddJob(name, prompt string, intervalMinutes int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("job prompt is required")
	}
	if intervalMinutes <= 0 {
		intervalMinutes = DefaultIntervalMinutes
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := loadJobs(s.path)
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].Name == name {
			jobs[i].Prompt = prompt
			jobs[i].IntervalMinutes = intervalMinutes
			return saveJobs(s.path, jobs)
		}
	}
	jobs = append(jobs, Job{Name: name, Prompt: prompt, IntervalMinutes: intervalMinutes})
	if err := saveJobs(s.path, jobs); err != nil {
		return err
	}
	s.log.Info().Str("job", name).Int("interval_minutes", intervalMinutes).Msg("cron job added")
	return nil
}

// RemoveJob implements tools.CronScheduler.
func (s *Service) RemoveJob(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := loadJobs(s.path)
	if err != nil {
		return false, err
	}
	kept := jobs[:0]
	removed := false
	for _, j := range jobs {
		if j.Name == name {
			removed = true
			continue
		}
		kept = append(kept, j)
	}
	if !removed {
		return false, nil
	}
	if err := saveJobs(s.path, kept); err != nil {
		return false, err
	}
	s.log.Info().Str("job", name).Msg("cron job removed")
	return true, nil
}

// cronLogger adapts zerolog to robfig's logger interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

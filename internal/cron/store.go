package cron

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultIntervalMinutes applies to jobs that omit interval_minutes.
const DefaultIntervalMinutes = 60

// Job is one entry of jobs.json.
type Job struct {
	Name            string
	Prompt          string
	IntervalMinutes int
	LastRun         *time.Time
}

// Interval returns the job period, applying the default.
func (j Job) Interval() time.Duration {
	m := j.IntervalMinutes
	if m <= 0 {
		m = DefaultIntervalMinutes
	}
	return time.Duration(m) * time.Minute
}

// Due reports whether the job should run at now. A job that never ran is
// always due.
func (j Job) Due(now time.Time) bool {
	if j.LastRun == nil {
		return true
	}
	return now.Sub(*j.LastRun) >= j.Interval()
}

// wireJob is the on-disk shape:
//
//	[{"name": "...", "prompt": "...", "interval_minutes": 60, "last_run": "2026-01-02T15:04:05"}]
type wireJob struct {
	Name            string  `json:"name"`
	Prompt          string  `json:"prompt"`
	IntervalMinutes int     `json:"interval_minutes,omitempty"`
	LastRun         *string `json:"last_run"`
}

// lastRunLayouts are accepted when reading; RFC 3339 is written.
var lastRunLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseLastRun(s string) (time.Time, error) {
	for _, layout := range lastRunLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised last_run %q", s)
}

func (w wireJob) toJob() Job {
	j := Job{Name: w.Name, Prompt: w.Prompt, IntervalMinutes: w.IntervalMinutes}
	if w.IntervalMinutes <= 0 {
		j.IntervalMinutes = DefaultIntervalMinutes
	}
	if w.LastRun != nil && *w.LastRun != "" {
		// An unreadable timestamp counts as never run.
		if t, err := parseLastRun(*w.LastRun); err == nil {
			j.LastRun = &t
		}
	}
	return j
}

func fromJob(j Job) wireJob {
	w := wireJob{Name: j.Name, Prompt: j.Prompt, IntervalMinutes: j.IntervalMinutes}
	if j.LastRun != nil {
		s := j.LastRun.Format(time.RFC3339)
		w.LastRun = &s
	}
	return w
}

// loadJobs reads path. A missing file holds no jobs.
func loadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var wire []wireJob
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	jobs := make([]Job, 0, len(wire))
	for _, w := range wire {
		jobs = append(jobs, w.toJob())
	}
	return jobs, nil
}

// saveJobs replaces path through a temp file and rename.
func saveJobs(path string, jobs []Job) error {
	wire := make([]wireJob, 0, len(jobs))
	for _, j := range jobs {
		wire = append(wire, fromJob(j))
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jobs.*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

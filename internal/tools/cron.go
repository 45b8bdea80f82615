package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CronJobSummary is the view of a scheduled job the cron tool works with.
type CronJobSummary struct {
	Name            string
	Prompt          string
	IntervalMinutes int
	LastRun         *time.Time
}

// CronScheduler is implemented by the cron service.
type CronScheduler interface {
	ListJobs() ([]CronJobSummary, error)
	AddJob(name, prompt string, intervalMinutes int) error
	RemoveJob(name string) (bool, error)
}

// CronTool lets the agent schedule recurring prompts.
type CronTool struct {
	svc CronScheduler
}

func NewCronTool(svc CronScheduler) *CronTool {
	return &CronTool{svc: svc}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Description() string {
	return "Schedule recurring tasks. Actions: add, list, remove. " +
		"A job's prompt is run by the agent every interval_minutes."
}

func (t *CronTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["add", "list", "remove"],
				"description": "Action to perform"
			},
			"name": {
				"type": "string",
				"description": "Job name (for add and remove)"
			},
			"prompt": {
				"type": "string",
				"description": "What the agent should do when the job fires (for add)"
			},
			"interval_minutes": {
				"type": "integer",
				"minimum": 1,
				"description": "Minutes between runs (for add, default 60)"
			}
		},
		"required": ["action"]
	}`)
}

func (t *CronTool) Execute(_ context.Context, params map[string]any) (string, error) {
	action, _ := params["action"].(string)
	switch action {
	case "add":
		return t.addJob(params)
	case "list":
		return t.listJobs()
	case "remove":
		return t.removeJob(params)
	default:
		return "", fmt.Errorf("unknown action: %s", action)
	}
}

func (t *CronTool) addJob(params map[string]any) (string, error) {
	name, _ := params["name"].(string)
	prompt, _ := params["prompt"].(string)
	if name == "" || prompt == "" {
		return "", fmt.Errorf("name and prompt are required for add")
	}
	interval := 60
	if v, ok := numericToInt(params["interval_minutes"]); ok && v > 0 {
		interval = v
	}
	if err := t.svc.AddJob(name, prompt, interval); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return fmt.Sprintf("Created job '%s' (every %d min)", name, interval), nil
}

func (t *CronTool) listJobs() (string, error) {
	jobs, err := t.svc.ListJobs()
	if err != nil {
		return "", err
	}
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}
	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, j := range jobs {
		last := "never"
		if j.LastRun != nil {
			last = j.LastRun.Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "- %s (every %d min, last run: %s): %s\n", j.Name, j.IntervalMinutes, last, j.Prompt)
	}
	return sb.String(), nil
}

func (t *CronTool) removeJob(params map[string]any) (string, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return "", fmt.Errorf("name is required for remove")
	}
	ok, err := t.svc.RemoveJob(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("Job %s not found", name), nil
	}
	return fmt.Sprintf("Removed job %s", name), nil
}

// numericToInt converts float64 or int from JSON params to int.
func numericToInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

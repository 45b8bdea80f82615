package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TimeTool reports the current date and time.
type TimeTool struct {
	now func() time.Time
}

func NewTimeTool() *TimeTool { return &TimeTool{now: time.Now} }

func (t *TimeTool) Name() string        { return "get_time" }
func (t *TimeTool) Description() string { return "Get the current date and time, optionally in an IANA timezone." }
func (t *TimeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tz": {"type": "string", "description": "IANA timezone, e.g. 'Asia/Kolkata' (default: local)"}
		}
	}`)
}

func (t *TimeTool) Execute(_ context.Context, params map[string]any) (string, error) {
	now := t.now()
	if tz, _ := params["tz"].(string); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", tz)
		}
		now = now.In(loc)
	}
	return now.Format("Monday, 02 January 2006 15:04:05 MST"), nil
}

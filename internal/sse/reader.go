// Package sse reads Server-Sent Events from a streaming HTTP body.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Type string
	Data string
	ID   string
}

// Reader parses Server-Sent Events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// maxLineSize bounds a single "data:" line; tool-call argument chunks
// from some backends are large.
const maxLineSize = 1024 * 1024

// NewReader creates a new SSE reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next event, or io.EOF once the stream ends.
// Multi-line data fields are joined with "\n"; comment lines are skipped.
func (r *Reader) Next() (*Event, error) {
	var (
		ev         Event
		data       []string
		hasContent bool
	)

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if hasContent {
				ev.Data = strings.Join(data, "\n")
				return &ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "event":
			ev.Type = value
			hasContent = true
		case "data":
			data = append(data, value)
			hasContent = true
		case "id":
			ev.ID = value
			hasContent = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasContent {
		ev.Data = strings.Join(data, "\n")
		return &ev, nil
	}
	return nil, io.EOF
}

// parseLine splits "field: value", dropping one optional space after the colon.
func parseLine(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

// Package session owns one agent loop per conversation and persists each
// conversation's history as a JSONL file.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","created_at":"…","updated_at":"…"}
//	Line 2+: one JSON message object per line
//
// Files are rewritten whole through a temp file and rename, so a crash
// leaves either the previous or the new history on disk.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// Record is one persisted conversation.
type Record struct {
	Key       string
	Messages  schema.Messages
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Info is the listing view of a persisted conversation.
type Info struct {
	Key       string    `json:"key"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Path      string    `json:"path"`
}

// Store reads and writes session files under one directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates the directory if necessary.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string { return s.dir }

type metaLine struct {
	Type      string `json:"_type"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// wireMessage is the on-disk JSON representation of a message.
type wireMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []map[string]any `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

func messageToWire(msg schema.Message) wireMessage {
	w := wireMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.ToolName,
	}
	for _, tc := range msg.ToolCalls {
		w.ToolCalls = append(w.ToolCalls, tc.ToWireMap())
	}
	return w
}

func wireToMessage(w wireMessage) schema.Message {
	msg := schema.Message{
		Role:       w.Role,
		Content:    w.Content,
		ToolCallID: w.ToolCallID,
		ToolName:   w.Name,
	}
	for _, tcm := range w.ToolCalls {
		fn, _ := tcm["function"].(map[string]any)
		id, _ := tcm["id"].(string)
		name, _ := fn["name"].(string)
		argsStr, _ := fn["arguments"].(string)
		args := map[string]any{}
		_ = json.Unmarshal([]byte(argsStr), &args)
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID:           id,
			Name:         name,
			Arguments:    args,
			RawArguments: argsStr,
		})
	}
	return msg
}

// Save atomically replaces the file for rec.Key.
func (s *Store) Save(rec Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	meta := metaLine{
		Type:      "metadata",
		Key:       rec.Key,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	for _, msg := range rec.Messages.Messages {
		if err := enc.Encode(messageToWire(msg)); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	path := s.path(rec.Key)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// Load reads the record for key. A missing file reports ok=false.
// Malformed lines are skipped.
func (s *Store) Load(key string) (rec Record, ok bool, err error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	defer f.Close()

	rec = Record{Key: key, Messages: schema.NewMessages()}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 8<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if bytes.Contains(line, []byte(`"_type":"metadata"`)) {
			var m metaLine
			if err := json.Unmarshal(line, &m); err == nil && m.Type == "metadata" {
				rec.CreatedAt, _ = time.Parse(time.RFC3339, m.CreatedAt)
				rec.UpdatedAt, _ = time.Parse(time.RFC3339, m.UpdatedAt)
				continue
			}
		}
		var w wireMessage
		if err := json.Unmarshal(line, &w); err != nil || w.Role == "" {
			s.log.Warn().Str("session", key).Msg("skipping malformed session line")
			continue
		}
		rec.Messages.Messages = append(rec.Messages.Messages, wireToMessage(w))
	}
	if err := scanner.Err(); err != nil {
		return Record{}, false, fmt.Errorf("read session %s: %w", key, err)
	}
	return rec, true, nil
}

// Delete removes the file for key. A missing file is not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns every persisted session, most recently updated first.
func (s *Store) List() ([]Info, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(paths))
	for _, path := range paths {
		key := strings.TrimSuffix(filepath.Base(path), ".jsonl")
		info := Info{Key: key, Path: path}
		if f, err := os.Open(path); err == nil {
			scanner := bufio.NewScanner(f)
			scanner.Buffer(make([]byte, 1<<20), 8<<20)
			first := true
			for scanner.Scan() {
				if first {
					first = false
					var m metaLine
					if json.Unmarshal(scanner.Bytes(), &m) == nil && m.Type == "metadata" {
						if m.Key != "" {
							info.Key = m.Key
						}
						info.CreatedAt, _ = time.Parse(time.RFC3339, m.CreatedAt)
						info.UpdatedAt, _ = time.Parse(time.RFC3339, m.UpdatedAt)
						continue
					}
				}
				if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
					info.Messages++
				}
			}
			f.Close()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, safeFilename(key)+".jsonl")
}

// safeFilename replaces filesystem-unsafe characters with underscores.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafe, r) || r < 0x20 {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		out = "_" + out
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
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

// Package memory owns the workspace identity documents and the durable
// USER.md memory document.
package memory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// Document is a flat text file mutated only by whole-document replace or
// append. Every mutation goes through a temp file in the same directory and
// an atomic rename; the previous content is kept at Path()+".bak".
type Document struct {
	path string

	mu sync.Mutex
	// rename is swapped in tests to simulate a crash before the final rename.
	rename func(oldpath, newpath string) error
}

// NewDocument returns a Document stored at path.
func NewDocument(path string) *Document {
	return &Document{path: path, rename: os.Rename}
}

func (d *Document) Path() string { return d.path }

// BackupPath is where the content preceding the last successful write lives.
func (d *Document) BackupPath() string { return d.path + ".bak" }

// Read returns the current content. A missing file reads as empty.
func (d *Document) Read() (string, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Replace overwrites the whole document. Concurrent writers are serialized;
// the last one wins.
func (d *Document) Replace(content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replaceLocked(content)
}

// Append adds text on a new line at the end of the document.
func (d *Document) Append(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.Read()
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", schema.ErrMemoryWrite, d.path, err)
	}
	if current != "" && !strings.HasSuffix(current, "\n") {
		current += "\n"
	}
	return d.replaceLocked(current + text + "\n")
}

// Update replaces the document with the result of edit applied to the
// current content, holding the write lock across both. An edit error
// leaves the document untouched.
func (d *Document) Update(edit func(current string) (string, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.Read()
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", schema.ErrMemoryWrite, d.path, err)
	}
	next, err := edit(current)
	if err != nil {
		return err
	}
	return d.replaceLocked(next)
}

func (d *Document) replaceLocked(content string) error {
	previous, err := os.ReadFile(d.path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: read %s: %w", schema.ErrMemoryWrite, d.path, err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", schema.ErrMemoryWrite, err)
	}

	tmp, err := writeTemp(dir, filepath.Base(d.path), []byte(content))
	if err != nil {
		return fmt.Errorf("%w: %w", schema.ErrMemoryWrite, err)
	}

	if existed {
		if err := d.writeAtomic(d.BackupPath(), previous); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("%w: backup: %w", schema.ErrMemoryWrite, err)
		}
	}

	if err := d.rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename: %w", schema.ErrMemoryWrite, err)
	}
	return nil
}

func (d *Document) writeAtomic(path string, data []byte) error {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), data)
	if err != nil {
		return err
	}
	if err := d.rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeTemp writes data to a synced temp file in dir and returns its path.
func writeTemp(dir, base string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

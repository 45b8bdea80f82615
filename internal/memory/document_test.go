package memory

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

func TestDocument_ReadMissingIsEmpty(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "USER.md"))
	got, err := doc.Read()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDocument_ReplaceKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "USER.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	doc := NewDocument(path)

	require.NoError(t, doc.Replace("v2"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	bak, err := os.ReadFile(doc.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, "v1", string(bak))

	require.NoError(t, doc.Replace("v3"))
	bak, err = os.ReadFile(doc.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, "v2", string(bak))
}

func TestDocument_FirstWriteHasNoBackup(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "USER.md"))
	require.NoError(t, doc.Replace("hello"))
	_, err := os.Stat(doc.BackupPath())
	assert.True(t, os.IsNotExist(err))
}

func TestDocument_CrashBeforeRenameLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "USER.md")
	require.NoError(t, os.WriteFile(path, []byte("original content"), 0o644))

	doc := NewDocument(path)
	doc.rename = func(oldpath, newpath string) error {
		if newpath == path {
			return errors.New("simulated crash")
		}
		return os.Rename(oldpath, newpath)
	}

	err := doc.Replace("new content that never lands")
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrMemoryWrite)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original content", string(got))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestDocument_Append(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "USER.md"))
	require.NoError(t, doc.Replace("# User"))
	require.NoError(t, doc.Append("- likes Go"))
	require.NoError(t, doc.Append("- lives in Hyderabad"))

	got, err := doc.Read()
	require.NoError(t, err)
	assert.Equal(t, "# User\n- likes Go\n- lives in Hyderabad\n", got)
}

func TestDocument_Update(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "USER.md"))
	require.NoError(t, doc.Replace("Name: Mithil"))

	require.NoError(t, doc.Update(func(cur string) (string, error) { return cur + "\nLikes: Go", nil }))
	got, err := doc.Read()
	require.NoError(t, err)
	assert.Equal(t, "Name: Mithil\nLikes: Go", got)

	bak, err := os.ReadFile(doc.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, "Name: Mithil", string(bak))

	errEdit := errors.New("no match")
	err = doc.Update(func(string) (string, error) { return "", errEdit })
	require.ErrorIs(t, err, errEdit)
	got, _ = doc.Read()
	assert.Equal(t, "Name: Mithil\nLikes: Go", got)
}

func TestDocument_ConcurrentReplaceNeverPartial(t *testing.T) {
	doc := NewDocument(filepath.Join(t.TempDir(), "USER.md"))
	contents := []string{"alpha alpha alpha", "beta beta", "gamma"}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, doc.Replace(contents[i%len(contents)]))
		}(i)
	}
	wg.Wait()

	got, err := doc.Read()
	require.NoError(t, err)
	assert.Contains(t, contents, got)
}

func TestEnsureWorkspace(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "workspace")
	require.NoError(t, os.MkdirAll(ws, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, SoulFile), []byte("custom soul"), 0o644))

	require.NoError(t, EnsureWorkspace(ws))

	assert.Equal(t, "custom soul", ReadDoc(ws, SoulFile))
	for _, name := range []string{IdentityFile, UserFile, AgentFile, HeartbeatFile} {
		assert.FileExists(t, filepath.Join(ws, name))
	}
	assert.Contains(t, ReadDoc(ws, IdentityFile), "bujji")
	assert.Empty(t, ReadDoc(ws, "missing.md"))
}

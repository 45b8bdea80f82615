package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MithilSaiReddy/bujji/internal/config"
	"github.com/MithilSaiReddy/bujji/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("BUJJI_HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = filepath.Join(t.TempDir(), "ws")
	return &cfg
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.OpenAI.APIKey = "sk-test"
	cfg.Agents.Defaults.Model = "gpt-test"

	c, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "gpt-test", c.Provider().DefaultModel())
	assert.True(t, c.Registry().Has("read_file"))
	assert.True(t, c.Registry().Has("cron"))
	assert.True(t, c.Registry().Has("update_user_memory"))
	assert.Equal(t, filepath.Join(cfg.WorkspacePath(), "USER.md"), c.UserMemory().Path())
	assert.NotNil(t, c.Dispatcher())
	assert.NotNil(t, c.Heartbeat())
	assert.NotNil(t, c.Watcher())

	jobs, err := c.CronService().Jobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestNewWithoutProvider(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no LLM provider")
}

func TestBackgroundRunnerBeforeWiring(t *testing.T) {
	r := &backgroundRunner{}
	_, err := r.RunBackground(context.Background(), "cron", "hi")
	assert.Error(t, err)
}

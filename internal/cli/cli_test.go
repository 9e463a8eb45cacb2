package cli

// ============================================================================
// CLI Test File
// Purpose: Verify command tree construction and YAML config parsing
// ============================================================================

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildCLI(t *testing.T) {
	root := BuildCLI()
	require.NotNil(t, root)
	assert.Equal(t, "taskgrid", root.Use)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["bench"], "bench command missing")
	assert.True(t, names["status"], "status command missing")

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "configs/default.yaml", flag.DefValue)
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
scheduler:
  worker_count: 12
  ready_queue_capacity: 128
  record_pool_capacity: 512

metrics:
  enabled: true
  port: 9191

bench:
  workload: fanin
  jobs: 500
  submitters: 2
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 128, cfg.Scheduler.ReadyQueueCapacity)
	assert.Equal(t, 512, cfg.Scheduler.RecordPoolCapacity)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, "fanin", cfg.Bench.Workload)
	assert.Equal(t, 500, cfg.Bench.Jobs)
	assert.Equal(t, 2, cfg.Bench.Submitters)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeTempConfig(t, "scheduler: [not, a, mapping")
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigPartial(t *testing.T) {
	// Unspecified sections decode to zero values rather than erroring.
	path := writeTempConfig(t, `
scheduler:
  worker_count: 2
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scheduler.WorkerCount)
	assert.Equal(t, 0, cfg.Scheduler.ReadyQueueCapacity)
	assert.False(t, cfg.Metrics.Enabled)
}

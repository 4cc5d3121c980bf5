package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
)

// chdir moves into an empty directory so no stray .env or config file is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t)

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ".", config.DataDir)
	assert.Equal(t, constants.MaxConcurrentStores, config.Parallelism)
	assert.Equal(t, constants.DefaultMaxAttempts, config.MaxAttempts)
	assert.Equal(t, constants.CatalogPageSize, config.PageSize)
	assert.Equal(t, constants.DefaultHTTPTimeout, config.HTTPTimeout)
	assert.Equal(t, "auto", config.LogFormat)
	assert.Empty(t, config.ConfigFile)
	assert.False(t, config.HasFulfillment())
}

func TestLoadConfigEnvironment(t *testing.T) {
	chdir(t)
	t.Setenv("BRIGHTSYNC_DATA_DIR", "/srv/docs")
	t.Setenv("BRIGHTSYNC_PARALLELISM", "8")
	t.Setenv("BRIGHTSYNC_HTTP_TIMEOUT", "45s")
	t.Setenv("BRIGHTSYNC_FULFILLMENT_KEY", "key")
	t.Setenv("BRIGHTSYNC_FULFILLMENT_SECRET", "secret")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs", config.DataDir)
	assert.Equal(t, 8, config.Parallelism)
	assert.Equal(t, 45*time.Second, config.HTTPTimeout)
	assert.True(t, config.HasFulfillment())
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BRIGHTSYNC_MAX_ATTEMPTS=9\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BRIGHTSYNC_MAX_ATTEMPTS") })

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9, config.MaxAttempts)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "brightsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /var/lib/brightsync\npage_size: 100\n"), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/brightsync", config.DataDir)
	assert.Equal(t, 100, config.PageSize)
	assert.Equal(t, path, config.ConfigFile)
}

func TestLoadConfigSearchPath(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".brightsync.yaml"), []byte("lock_dir: /run/brightsync\n"), 0o600))

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/run/brightsync", config.LockDir)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := chdir(t)

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")

	t.Setenv("BRIGHTSYNC_PARALLELISM", "0")
	_, err = LoadConfig("")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdateFromFlags(t *testing.T) {
	config := &Config{Format: "json", DataDir: "."}
	config.UpdateFromFlags(true, false, true, "", "debug", "/data")

	assert.True(t, config.Verbose)
	assert.True(t, config.NoColor)
	assert.Equal(t, "json", config.Format, "empty flag keeps the configured format")
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "/data", config.DataDir)
}

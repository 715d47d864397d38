package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/logging"
)

func TestDefaultDerivesStoragePaths(t *testing.T) {
	c := Default()

	assert.Equal(t, "localhost", c.Server.Host)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, filepath.Join(c.Storage.DataDir, "files"), c.Storage.FilesDir)
	assert.Equal(t, filepath.Join(c.Storage.DataDir, "inkwell.db"), c.Storage.DatabasePath)
	assert.Equal(t, int64(16<<20), c.Upload.MaxBytes)
	assert.Equal(t, logging.LevelInfo, c.LogLevel())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.True(t, c.Server.EnableCORS)
	assert.Equal(t, 30*time.Second, c.Upload.FetchTimeout)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkwell.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9090
  debug: true
storage:
  data_dir: ` + dir + `
upload:
  max_bytes: 1048576
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, 9090, c.Server.Port)
	assert.True(t, c.Server.Debug)
	assert.Equal(t, int64(1<<20), c.Upload.MaxBytes)
	assert.Equal(t, logging.LevelDebug, c.LogLevel())
	assert.Equal(t, filepath.Join(dir, "files"), c.Storage.FilesDir)
	assert.Equal(t, filepath.Join(dir, "inkwell.db"), c.Storage.DatabasePath)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFileAndDefaults(t *testing.T) {
	t.Setenv("INKWELL_SERVER_PORT", "7070")
	t.Setenv("INKWELL_LOG_LEVEL", "error")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, c.Server.Port)
	assert.Equal(t, logging.LevelError, c.LogLevel())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	c := Default()
	c.Server.Port = 700000
	assert.Error(t, c.Validate())

	c = Default()
	c.Upload.MaxBytes = 0
	assert.Error(t, c.Validate())
}

func TestAddr(t *testing.T) {
	c := Default()
	c.Server.Host = "10.0.0.5"
	c.Server.Port = 8181
	assert.Equal(t, "10.0.0.5:8181", c.Addr())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaldron/snapshift/internal/config"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Verbose)
	assert.Nil(t, cfg.Defaults.NoChown)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "snapshift")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
verbose = true
nochown = true
dirlinks = false
iouring = true
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Verbose)
	assert.True(t, *cfg.Defaults.Verbose)

	require.NotNil(t, cfg.Defaults.NoChown)
	assert.True(t, *cfg.Defaults.NoChown)

	require.NotNil(t, cfg.Defaults.DirLinks)
	assert.False(t, *cfg.Defaults.DirLinks)

	require.NotNil(t, cfg.Defaults.IOURing)
	assert.True(t, *cfg.Defaults.IOURing)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "snapshift")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
nochown = true
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Nil(t, cfg.Defaults.Verbose)
	require.NotNil(t, cfg.Defaults.NoChown)
	assert.True(t, *cfg.Defaults.NoChown)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "snapshift")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("invalid [[["), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/snapshift/config.toml", config.Path())
}

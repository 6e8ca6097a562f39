package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockhand/internal/config"
	"dockhand/internal/errors"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"adds v prefix", "1.2.3", "v1.2.3"},
		{"keeps existing prefix", "v1.2.3", "v1.2.3"},
		{"dev stays bare", "dev", "dev"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatVersion(tt.input))
		})
	}
}

func TestSetVersionInfo(t *testing.T) {
	originalVersion := version
	originalCommit := commit
	originalDate := date
	defer func() {
		version = originalVersion
		commit = originalCommit
		date = originalDate
	}()

	SetVersionInfo("2.0.0", "deadbeef", "2025-06-01")

	assert.Equal(t, "2.0.0", GetVersion())
	assert.Equal(t, "deadbeef", commit)
	assert.Equal(t, "2025-06-01", date)
}

func TestInitCommandWritesConfig(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	err := initCommand("tower", false)
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)

	assert.Equal(t, "tower", cfg.Remote.Host)
	assert.Equal(t, config.CurrentConfigVersion, cfg.Version)

	// The sample table should match-check cleanly.
	svc, ok := cfg.Services["sonarr"]
	require.True(t, ok)
	assert.Equal(t, "Sonarr", svc.Name)
	assert.Equal(t, 8989, svc.Port)
}

func TestInitCommandRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	require.NoError(t, initCommand("tower", false))

	err := initCommand("other", false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	// --force replaces the file.
	require.NoError(t, initCommand("other", true))
	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Remote.Host)
}

func TestLoadConfigExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  host: tower\n"), 0o644))

	originalConfig := configFlag
	defer func() { configFlag = originalConfig }()
	configFlag = path

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "tower", cfg.Remote.Host)
}

func TestBuildAppWiresSubsystems(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Host = "tower"

	app := buildApp(cfg)

	assert.Equal(t, "tower", app.manager.Host())
	assert.NotNil(t, app.registry)
	assert.NotNil(t, app.metrics)
	assert.NotNil(t, app.handler)
}

// chdir switches the working directory for a test and returns the restore func.
func chdir(t *testing.T, dir string) func() {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(original) }
}

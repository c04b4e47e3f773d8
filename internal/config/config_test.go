package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultBuild(t *testing.T) {
	cfg, err := WithDefault().Build()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers())
	assert.Equal(t, RobotsRespect, cfg.RespectRobots())
	assert.Equal(t, ExportStrict, cfg.ExportProfile())
	assert.True(t, cfg.ArchiveFallback())
}

func TestBuildRejectsInvalidWorkers(t *testing.T) {
	_, err := WithDefault().WithWorkers(0).Build()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuildRejectsInvalidRobotsPolicy(t *testing.T) {
	_, err := WithDefault().WithRespectRobots(RobotsPolicy("nonsense")).Build()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWithChaining(t *testing.T) {
	cfg, err := WithDefault().
		WithWorkers(16).
		WithMinDelay(2 * time.Second).
		WithMxCheck(true).
		WithExportProfile(ExportPermissive).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Workers())
	assert.Equal(t, 2*time.Second, cfg.MinDelay())
	assert.True(t, cfg.MxCheck())
	assert.Equal(t, ExportPermissive, cfg.ExportProfile())
}

func TestWithConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	payload := map[string]any{
		"workers":       20,
		"mxCheck":       true,
		"exportProfile": "permissive",
		"blacklist":     []string{"badactor.example"},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	cfg, err := WithConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Workers())
	assert.True(t, cfg.MxCheck())
	assert.Equal(t, ExportPermissive, cfg.ExportProfile())
	assert.Equal(t, []string{"badactor.example"}, cfg.Blacklist())
}

func TestWithConfigFileMissingPath(t *testing.T) {
	_, err := WithConfigFile("/nonexistent/path/config.json")
	assert.ErrorIs(t, err, ErrFileDoesNotExist)
}

func TestWithConfigFileEnvOverride(t *testing.T) {
	t.Setenv("LEGALSCOUT_WORKERS", "32")
	cfg, err := WithConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Workers())
}

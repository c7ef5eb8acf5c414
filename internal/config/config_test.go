package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://gis.fdot.gov/arcgis/rest/services/Work_Program_Current/FeatureServer/2/query", cfg.API.BaseURL)
	assert.Equal(t, 2000, cfg.API.PageSize)
	assert.Equal(t, 60, cfg.API.TimeoutSecs)
	assert.InDelta(t, 4.0, cfg.API.RequestsPerSec, 0.001)
	assert.Equal(t, "MIAMI-DADE", cfg.API.County)
	assert.Equal(t, "data/processed/fdot_work_program_construction.gpkg", cfg.Output.Path)
	assert.Equal(t, "work_program_construction", cfg.Output.Layer)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
api:
  page_size: 500
  county: BROWARD
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.API.PageSize)
	assert.Equal(t, "BROWARD", cfg.API.County)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.API.TimeoutSecs)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("WORKPROGRAM_API_PAGE_SIZE", "250")
	t.Setenv("WORKPROGRAM_OUTPUT_PATH", "/tmp/out.gpkg")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.API.PageSize)
	assert.Equal(t, "/tmp/out.gpkg", cfg.Output.Path)
}

func TestValidateDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateMissingFields(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url is required")
	assert.Contains(t, err.Error(), "api.page_size must be > 0")
	assert.Contains(t, err.Error(), "output.path is required")
}

func TestValidateBadPageSize(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.API.PageSize = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.page_size must be > 0")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

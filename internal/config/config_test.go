package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Extract.FileTimeoutSecs)
	assert.Equal(t, 30*time.Second, cfg.Extract.FileTimeout())
	assert.Equal(t, 4, cfg.Extract.MaxConcurrentFiles)
	assert.Equal(t, int64(50*1024*1024), cfg.Extract.MaxFileSize())
	assert.Equal(t, "pdfcpu", cfg.PDF.Provider)
	assert.Equal(t, "pdftotext", cfg.PDF.PdfToTextPath)
	assert.InDelta(t, 0.85, cfg.Match.Threshold, 0.001)
	assert.InDelta(t, 1.0, cfg.Match.DimensionToleranceIn, 0.001)
	assert.InDelta(t, 0.5, cfg.Match.TextWeight, 0.001)
	assert.InDelta(t, 0.2, cfg.Match.CategoryWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Match.DimensionWeight, 0.001)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, "Items", cfg.Export.SheetName)
	assert.Equal(t, "\n", cfg.Export.InstructionDelimiter)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 60, cfg.Server.RunTTLMinutes)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
match:
  threshold: 0.9
  dimension_tolerance_in: 0.5
export:
  format: csv
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.9, cfg.Match.Threshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Match.DimensionToleranceIn, 0.001)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Extract.FileTimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
match:
  threshold: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("QUOTE_LOG_LEVEL", "warn")
	t.Setenv("QUOTE_MATCH_THRESHOLD", "0.75")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 0.75, cfg.Match.Threshold, 0.001)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("QUOTE_EXTRACT_FILE_TIMEOUT_SECS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Extract.FileTimeoutSecs)
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	chdirTemp(t)

	t.Setenv("QUOTE_MATCH_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.threshold")
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Extract.FileTimeoutSecs = 30
	cfg.Match.Threshold = 0.85
	cfg.Match.DimensionToleranceIn = 1
	cfg.Match.TextWeight = 0.5
	cfg.Match.CategoryWeight = 0.2
	cfg.Match.DimensionWeight = 0.3
	cfg.Export.Format = "xlsx"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero threshold", func(c *Config) { c.Match.Threshold = 0 }, "match.threshold"},
		{"negative tolerance", func(c *Config) { c.Match.DimensionToleranceIn = -1 }, "dimension_tolerance_in"},
		{"zero weights", func(c *Config) {
			c.Match.TextWeight, c.Match.CategoryWeight, c.Match.DimensionWeight = 0, 0, 0
		}, "weights"},
		{"zero timeout", func(c *Config) { c.Extract.FileTimeoutSecs = 0 }, "file_timeout_secs"},
		{"unknown format", func(c *Config) { c.Export.Format = "pdf" }, "export.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the search path at an empty directory so a developer's
// own .slotwise.yaml never leaks into tests.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("SLOTWISE_CONFIG_PATH", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.PixelsPerMinute)
	assert.Equal(t, 15, cfg.SnapMinutes)
	assert.Equal(t, 15, cfg.MinimumMinutes)
	assert.Equal(t, SourceLocal, cfg.Source)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Equal(t, CommitBuffered, cfg.Commit.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	content := `
snap_minutes: 30
timezone: Europe/Berlin
store:
  path: /tmp/slotwise-test
commit:
  mode: immediate
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".slotwise.yaml"), []byte(content), 0o644))

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.SnapMinutes)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone())
	assert.Equal(t, "/tmp/slotwise-test", cfg.Store.Path)
	assert.Equal(t, CommitImmediate, cfg.Commit.Mode)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".slotwise.yaml"), []byte("snap_minutes: 30\n"), 0o644))
	t.Setenv("SLOTWISE_SNAP_MINUTES", "10")
	t.Setenv("SLOTWISE_STORE_PATH", "/tmp/env-store")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.SnapMinutes)
	assert.Equal(t, "/tmp/env-store", cfg.Store.Path)
}

func TestLoad_TelemetryAndAudit(t *testing.T) {
	dir := isolate(t)
	content := `
telemetry:
  tracing: otlp
  otlp_endpoint: collector:4318
  event_type_labels: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".slotwise.yaml"), []byte(content), 0o644))
	t.Setenv("SLOTWISE_AUDIT_INCLUDE_CONTACTS", "true")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "prometheus", cfg.Telemetry.Metrics)
	assert.Equal(t, "otlp", cfg.Telemetry.Tracing)
	assert.Equal(t, "collector:4318", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, 0.1, cfg.Telemetry.SampleRate)
	assert.True(t, cfg.Telemetry.EventTypeLabels)
	assert.True(t, cfg.Audit.Enabled)
	assert.True(t, cfg.Audit.IncludeContacts)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	dir := isolate(t)
	_, err := Load(nil, filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("SLOTWISE_SNAP_MINUTES", "7")
	t.Setenv("SLOTWISE_SOURCE", "outlook")

	_, err := Load(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snap_minutes")
	assert.Contains(t, err.Error(), "outlook")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			PixelsPerMinute: 1, ViewEndHour: 24, SnapMinutes: 15, MinimumMinutes: 15,
			Columns: 1, TZ: "UTC", Source: SourceLocal,
			Commit: CommitConfig{Mode: CommitBuffered}, Log: LogConfig{Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scale", func(c *Config) { c.PixelsPerMinute = 0 }},
		{"inverted hours", func(c *Config) { c.ViewStartHour = 20; c.ViewEndHour = 8 }},
		{"zero minimum", func(c *Config) { c.MinimumMinutes = 0 }},
		{"no columns", func(c *Config) { c.Columns = 0 }},
		{"negative width", func(c *Config) { c.ColumnWidth = -1 }},
		{"bad timezone", func(c *Config) { c.TZ = "Mars/Olympus" }},
		{"bad mode", func(c *Config) { c.Commit.Mode = "later" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestGrid(t *testing.T) {
	cfg := &Config{
		PixelsPerMinute: 2, ViewStartHour: 8, ViewEndHour: 20, SnapMinutes: 30,
		MinimumMinutes: 45, Columns: 7, ColumnWidth: 120, TZ: "Europe/Berlin",
	}
	g := cfg.Grid()

	assert.Equal(t, 2.0, g.PixelsPerMinute)
	assert.Equal(t, 30, g.SnapMinutes)
	assert.Equal(t, 45*time.Minute, g.MinimumDuration)
	assert.Equal(t, 7, g.Columns)
	assert.Equal(t, "Europe/Berlin", g.Location.String())

	cfg.TZ = "nowhere"
	assert.Equal(t, time.UTC, cfg.Grid().Location)
}

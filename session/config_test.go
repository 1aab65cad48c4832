package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sendspin-audio/sendspin-go/scheduler"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MinimalFillsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  base_url: "https://example.com"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.NotEmpty(t, cfg.PlayerID, "a player id must be generated when absent")
	assert.Equal(t, scheduler.ModeSync, cfg.CorrectionMode)
	assert.Equal(t, int64(defaultSyncIntervalMs), cfg.SyncIntervalMs)
	assert.Equal(t, int64(defaultStateIntervalMs), cfg.StateIntervalMs)
}

func TestLoadConfig_RequiresBaseURL(t *testing.T) {
	path := writeConfigFile(t, `
player:
  id: "p1"
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_ParsesCorrectionModeHyphenSpelling(t *testing.T) {
	path := writeConfigFile(t, `
server:
  base_url: "https://example.com"
correction:
  mode: "quality-local"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ModeQualityLocal, cfg.CorrectionMode)
}

func TestLoadConfig_RejectsUnknownCorrectionMode(t *testing.T) {
	path := writeConfigFile(t, `
server:
  base_url: "https://example.com"
correction:
  mode: "bogus"
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_FullOptionsRoundTrip(t *testing.T) {
	path := writeConfigFile(t, `
player:
  id: "p1"
  name: "kitchen"
  codecs: ["flac", "pcm"]
  buffer_capacity: 65536
server:
  base_url: "ws://host:1234"
sync:
  delay_ms: 50
  use_output_latency_compensation: true
  interval_ms: 2000
  state_interval_ms: 8000
  filter_confidence_us: 10000
  outlier_cap_us: 100000
volume:
  use_hardware: true
resampler_quality: 3
log:
  level: "warn"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "p1", cfg.PlayerID)
	assert.Equal(t, "kitchen", cfg.ClientName)
	assert.Equal(t, []string{"flac", "pcm"}, cfg.Codecs)
	assert.Equal(t, 65536, cfg.BufferCapacity)
	assert.Equal(t, int64(50), cfg.SyncDelayMs)
	assert.True(t, cfg.UseOutputLatencyCompensation)
	assert.True(t, cfg.UseHardwareVolume)
	assert.Equal(t, int64(2000), cfg.SyncIntervalMs)
	assert.Equal(t, int64(8000), cfg.StateIntervalMs)
	assert.Equal(t, 3, cfg.ResamplerQuality)
}

func TestLoadConfig_MissingFileIsAnError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

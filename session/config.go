// Package session wires the five core components (Time Filter, State
// Store, Protocol Engine, Decode Front-end, Scheduler) plus the transport
// and audio sink into a single runnable client, the way the teacher's
// bridge.Service wires SIP/Telegram endpoints around a MediaBridge.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sendspin-audio/sendspin-go/scheduler"
)

const (
	defaultSyncIntervalMs  = 1000
	defaultStateIntervalMs = 5000
)

// Config bounds everything a Session needs: spec.md §6's core options plus
// the ambient additions SPEC_FULL.md §4 names (log level, timer overrides,
// filter tuning, resampler quality).
type Config struct {
	PlayerID                     string
	ClientName                   string
	BaseURL                      string
	Codecs                       []string
	BufferCapacity               int
	SyncDelayMs                  int64
	UseOutputLatencyCompensation bool
	UseHardwareVolume            bool
	CorrectionMode               scheduler.Mode

	LogLevel           slog.Level
	SyncIntervalMs     int64
	StateIntervalMs    int64
	FilterConfidenceUs float64
	OutlierCapUs       float64
	ResamplerQuality   int
}

func (c Config) withDefaults() Config {
	if c.PlayerID == "" {
		c.PlayerID = uuid.NewString()
	}
	if c.CorrectionMode == "" {
		c.CorrectionMode = scheduler.ModeSync
	}
	if c.SyncIntervalMs <= 0 {
		c.SyncIntervalMs = defaultSyncIntervalMs
	}
	if c.StateIntervalMs <= 0 {
		c.StateIntervalMs = defaultStateIntervalMs
	}
	return c
}

func (c Config) syncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

func (c Config) stateInterval() time.Duration {
	return time.Duration(c.StateIntervalMs) * time.Millisecond
}

// yamlConfig mirrors the on-disk shape; Config is the validated,
// defaults-applied in-memory form used everywhere else (teacher's
// bridge.yamlConfig/bridge.Config split).
type yamlConfig struct {
	Player struct {
		ID             string   `yaml:"id"`
		Name           string   `yaml:"name"`
		Codecs         []string `yaml:"codecs"`
		BufferCapacity int      `yaml:"buffer_capacity"`
	} `yaml:"player"`
	Server struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Sync struct {
		DelayMs                      int64   `yaml:"delay_ms"`
		UseOutputLatencyCompensation bool    `yaml:"use_output_latency_compensation"`
		IntervalMs                   int64   `yaml:"interval_ms"`
		StateIntervalMs              int64   `yaml:"state_interval_ms"`
		FilterConfidenceUs           float64 `yaml:"filter_confidence_us"`
		OutlierCapUs                 float64 `yaml:"outlier_cap_us"`
	} `yaml:"sync"`
	Volume struct {
		UseHardware bool `yaml:"use_hardware"`
	} `yaml:"volume"`
	Correction struct {
		Mode string `yaml:"mode"`
	} `yaml:"correction"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	ResamplerQuality int `yaml:"resampler_quality"`
}

// LoadConfig reads and validates a YAML config file, following the
// teacher's bridge.LoadConfig shape: fields copied across after validation,
// defaults applied to whatever the file leaves unset, errors wrapped rather
// than panicked.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("session: read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("session: parse config file: %w", err)
	}

	if yc.Server.BaseURL == "" {
		return Config{}, errors.New("server.base_url is required")
	}

	cfg := Config{
		PlayerID:                     yc.Player.ID,
		ClientName:                   yc.Player.Name,
		BaseURL:                      yc.Server.BaseURL,
		Codecs:                       yc.Player.Codecs,
		BufferCapacity:               yc.Player.BufferCapacity,
		SyncDelayMs:                  yc.Sync.DelayMs,
		UseOutputLatencyCompensation: yc.Sync.UseOutputLatencyCompensation,
		UseHardwareVolume:            yc.Volume.UseHardware,
		SyncIntervalMs:               yc.Sync.IntervalMs,
		StateIntervalMs:              yc.Sync.StateIntervalMs,
		FilterConfidenceUs:           yc.Sync.FilterConfidenceUs,
		OutlierCapUs:                 yc.Sync.OutlierCapUs,
		ResamplerQuality:             yc.ResamplerQuality,
	}

	if yc.Correction.Mode != "" {
		mode, err := parseCorrectionMode(yc.Correction.Mode)
		if err != nil {
			return Config{}, err
		}
		cfg.CorrectionMode = mode
	}

	if yc.Log.Level != "" {
		level, err := parseLogLevel(yc.Log.Level)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}

	return cfg.withDefaults(), nil
}

// parseCorrectionMode accepts the wire spelling ("quality-local") and maps
// it onto the scheduler package's internal Mode constant.
func parseCorrectionMode(s string) (scheduler.Mode, error) {
	switch s {
	case "sync":
		return scheduler.ModeSync, nil
	case "quality":
		return scheduler.ModeQuality, nil
	case "quality-local":
		return scheduler.ModeQualityLocal, nil
	default:
		return "", fmt.Errorf("correction.mode must be sync, quality, or quality-local, got %q", s)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", s, err)
	}
	return level, nil
}

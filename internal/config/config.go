// Package config loads and persists the engine's typed configuration,
// replacing the dynamic configuration dictionary a source program might
// use with an explicit struct enumerating every recognized key (spec
// §9 design note).
package config

import (
	"encoding/json"
	"os"
)

// NTP carries the `ntp.*` config keys (spec §6).
type NTP struct {
	Enabled            bool     `json:"enabled"`
	Servers            []string `json:"servers"`
	TimeoutSeconds     float64  `json:"timeout"`
	MaxTries           int      `json:"max_tries"`
	ResyncIntervalSec  float64  `json:"resync_interval_sec"`
	AdjustThresholdMs  float64  `json:"adjust_threshold_ms"`
	IncludeDelta       bool     `json:"include_delta"`
}

// Playback carries the `playback.*` config keys (spec §6).
type Playback struct {
	KeymapProfile string  `json:"keymap_profile"`
	TempoDefault  float64 `json:"tempo_default"`
}

// Config is the engine's full persisted configuration.
type Config struct {
	NTP      NTP      `json:"ntp"`
	Playback Playback `json:"playback"`
}

// Default returns spec §6's documented default values.
func Default() Config {
	return Config{
		NTP: NTP{
			Enabled:           false,
			Servers:           []string{"pool.ntp.org"},
			TimeoutSeconds:    1.5,
			MaxTries:          3,
			ResyncIntervalSec: 1.0,
			AdjustThresholdMs: 5.0,
			IncludeDelta:      true,
		},
		Playback: Playback{
			KeymapProfile: "piano",
			TempoDefault:  1.0,
		},
	}
}

// Load reads a Config from a JSON file, applying defaults for any field
// left at its zero value so a partial config file is still usable
// (mirrors parser.LoadTrack's "load typed struct, fill in defaults" shape).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.NTP.MaxTries == 0 {
		cfg.NTP.MaxTries = 3
	}
	if cfg.NTP.ResyncIntervalSec == 0 {
		cfg.NTP.ResyncIntervalSec = 1.0
	}
	if cfg.NTP.AdjustThresholdMs == 0 {
		cfg.NTP.AdjustThresholdMs = 5.0
	}
	if cfg.Playback.TempoDefault == 0 {
		cfg.Playback.TempoDefault = 1.0
	}
	if len(cfg.NTP.Servers) == 0 {
		cfg.NTP.Servers = []string{"pool.ntp.org"}
	}

	return &cfg, nil
}

// Save persists cfg to path as indented JSON.
func (cfg *Config) Save(path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

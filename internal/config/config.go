// Package config loads the preferences file. Performance state (mutes,
// pitch, queued orders) is deliberately never persisted; only the knobs you
// set once per rig live here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	OSCPort      int     `json:"osc_port"`      // 0 disables the OSC server
	MidiDevice   string  `json:"midi_device"`   // substring match, "" disables MIDI
	BufferFrames int     `json:"buffer_frames"` // render quantum size
	PitchStep    float64 `json:"pitch_step"`    // ratio per +/- press
}

func Default() Config {
	return Config{
		OSCPort:      0,
		MidiDevice:   "",
		BufferFrames: 1024,
		PitchStep:    1.05,
	}
}

// DefaultPath is ~/.config/regroove/config.json (per-OS config dir).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "regroove", "config.json"), nil
}

// Load reads the config at path. A missing file yields the defaults; a file
// that exists but does not parse or validate is an error, because silently
// ignoring a typoed config mid-gig is worse than refusing to start.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory as needed.
func Save(path string, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.OSCPort < 0 || c.OSCPort > 65535 {
		return fmt.Errorf("osc_port %d out of range", c.OSCPort)
	}
	if c.BufferFrames < 64 || c.BufferFrames > 1<<16 {
		return fmt.Errorf("buffer_frames %d out of range [64, 65536]", c.BufferFrames)
	}
	if c.PitchStep <= 1.0 || c.PitchStep > 2.0 {
		return fmt.Errorf("pitch_step %v out of range (1.0, 2.0]", c.PitchStep)
	}
	return nil
}

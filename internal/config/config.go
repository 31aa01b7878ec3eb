// Package config holds process-wide engine configuration: worker count,
// error-handling mode, cache location, and output verbosity. Precedence, low
// to high: built-in defaults, an optional .csbuild/config.yaml overlay, CLI
// flags.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the engine's process-wide configuration.
type Config struct {
	// Jobs is the worker pool size. Zero means unset; Load replaces a
	// non-positive value with runtime.NumCPU().
	Jobs int `yaml:"jobs"`

	// StopOnError aborts the run after the first tool failure instead of
	// draining the rest of the ready queue.
	StopOnError bool `yaml:"stop_on_error"`

	// ShowCommands is set by --show-commands or the config file. No package
	// reads it: the scheduler logs each non-empty Tool.Describe string at
	// debug level whether it is set or not.
	ShowCommands bool `yaml:"show_commands"`

	// CachePath is loaded and saved with the rest of the configuration, but
	// no package reads it: the settings cache always lives under
	// <root>/.csbuild/settings and each project keeps its artifact ledger
	// under its own intermediate directory.
	CachePath string `yaml:"cache_path"`

	// Verbosity follows the -v/-q/-qq convention: -1 debug, 0 info, 1 warn,
	// 2 error-only.
	Verbosity int `yaml:"verbosity"`
}

// DefaultConfig returns the zero-config defaults.
func DefaultConfig() *Config {
	return &Config{
		Jobs:         runtime.NumCPU(),
		StopOnError:  false,
		ShowCommands: false,
		CachePath:    ".csbuild",
		Verbosity:    0,
	}
}

// Load reads an optional YAML overlay at path on top of DefaultConfig. A
// missing file is not an error; Load returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.NumCPU()
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML settings file. If the file does not exist and
// required is false, it returns an empty Config and no error. An empty or
// all-comment file also returns an empty Config.
func LoadFile(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return cfg, nil
}

// Merge copies values set in file into cfg, except where the corresponding
// flag was given on the command line. changed reports whether a flag was
// set, as pflag.FlagSet.Changed does.
func Merge(cfg, file *Config, changed func(name string) bool) {
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if file.BinaryPath != "" && !changed(FlagBinary) {
		cfg.BinaryPath = file.BinaryPath
	}
	if file.ConfigPath != "" && !changed(FlagConfig) {
		cfg.ConfigPath = file.ConfigPath
	}
	if len(file.Remotes) > 0 && !changed(FlagRemote) {
		cfg.Remotes = append([]string(nil), file.Remotes...)
	}
	if file.Verbosity > 0 && !changed(FlagVerbose) {
		cfg.Verbosity = file.Verbosity
	}
	if file.LogFormat != "" && !changed(FlagLogFormat) {
		cfg.LogFormat = file.LogFormat
	}
	if file.LogLevel != "" && !changed(FlagLogLevel) {
		cfg.LogLevel = file.LogLevel
	}
	if file.MetricsAddr != "" && !changed(FlagMetrics) {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.TUIEnabled && !changed(FlagTUI) {
		cfg.TUIEnabled = true
	}
	if file.SkipPreflight && !changed(FlagSkipPreflight) {
		cfg.SkipPreflight = true
	}
}

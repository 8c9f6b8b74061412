// Package config provides configuration management for talpid-cli.
package config

import (
	"os"
	"time"
)

// BacktraceEnv enables backtraces in fatal error reports when set to "1".
const BacktraceEnv = "TALPID_BACKTRACE"

// Config holds all configuration options for the supervisor.
type Config struct {
	// OpenVPN
	BinaryPath string   `yaml:"binary"`
	ConfigPath string   `yaml:"config"`
	Remotes    []string `yaml:"remotes"` // host:port[/udp|tcp]

	// Verbosity > 0 forwards the child's output.
	Verbosity int `yaml:"verbosity"`

	// Observability
	LogFormat   string `yaml:"log_format"` // json, text
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics"` // empty = disabled
	TUIEnabled  bool   `yaml:"tui"`

	// Diagnostic modes
	PrintCmd      bool `yaml:"-"`
	SkipPreflight bool `yaml:"skip_preflight"`
	ShowVersion   bool `yaml:"-"`

	// SettingsPath is the optional YAML file the other fields can be read
	// from.
	SettingsPath string `yaml:"-"`

	// Restart policy
	RestartDelay time.Duration `yaml:"-"`

	// Backtrace adds the origin of a fatal error to its report.
	Backtrace bool `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BinaryPath: "openvpn",

		LogFormat: "text",
		LogLevel:  "info",

		RestartDelay: 500 * time.Millisecond,
	}
}

// ApplyEnv reads settings that come from the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv(BacktraceEnv) == "1" {
		cfg.Backtrace = true
	}
}

// ForwardOutput reports whether the child's output is relayed.
func (c *Config) ForwardOutput() bool {
	return c.Verbosity > 0
}

package config

import (
	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagBinary        = "binary"
	FlagConfig        = "config"
	FlagRemote        = "remote"
	FlagVerbose       = "verbose"
	FlagSettings      = "settings"
	FlagLogFormat     = "log-format"
	FlagLogLevel      = "log-level"
	FlagMetrics       = "metrics"
	FlagTUI           = "tui"
	FlagSkipPreflight = "skip-preflight"
	FlagPrintCmd      = "print-cmd"
	FlagVersion       = "version"
)

// BindFlags registers all flags on fs, writing into cfg. cfg's current
// values become the flag defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// OpenVPN
	fs.StringVarP(&cfg.BinaryPath, FlagBinary, "b", cfg.BinaryPath, "Path to the OpenVPN binary")
	fs.StringVarP(&cfg.ConfigPath, FlagConfig, "c", cfg.ConfigPath, "OpenVPN config file")
	fs.StringArrayVarP(&cfg.Remotes, FlagRemote, "r", cfg.Remotes, "Remote as host:port[/udp|tcp] (can repeat)")

	// Output
	fs.CountVarP(&cfg.Verbosity, FlagVerbose, "v", "Forward OpenVPN output (repeat for debug logs)")

	// Settings file
	fs.StringVar(&cfg.SettingsPath, FlagSettings, cfg.SettingsPath, "YAML settings file; flags override it")

	// Observability
	fs.StringVar(&cfg.LogFormat, FlagLogFormat, cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, FlagLogLevel, cfg.LogLevel, `Log level: "debug", "info", "warn" or "error"`)
	fs.StringVar(&cfg.MetricsAddr, FlagMetrics, cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.TUIEnabled, FlagTUI, cfg.TUIEnabled, "Show a live terminal dashboard")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.SkipPreflight, FlagSkipPreflight, cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.PrintCmd, FlagPrintCmd, cfg.PrintCmd, "Print the OpenVPN command and exit")
	fs.BoolVar(&cfg.ShowVersion, FlagVersion, cfg.ShowVersion, "Print version and exit")
}

// DebugLogging reports whether the verbosity asks for debug logs.
func (c *Config) DebugLogging() bool {
	return c.Verbosity > 1
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdr130/mullvadvpn-app/internal/logging"
	"github.com/tdr130/mullvadvpn-app/internal/process"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.BinaryPath) == "" {
		errs = append(errs, ValidationError{
			Field:   "binary",
			Message: "OpenVPN binary path is required",
		})
	}

	if strings.TrimSpace(cfg.ConfigPath) == "" {
		errs = append(errs, ValidationError{
			Field:   "config",
			Message: "OpenVPN config file is required",
		})
	}

	if len(cfg.Remotes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "remote",
			Message: "at least one remote is required",
		})
	}
	for _, r := range cfg.Remotes {
		if _, err := process.ParseRemote(r); err != nil {
			errs = append(errs, ValidationError{
				Field:   "remote",
				Message: err.Error(),
			})
		}
	}

	if !logging.ValidFormat(cfg.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if cfg.RestartDelay <= 0 {
		errs = append(errs, ValidationError{
			Field:   "restart_delay",
			Message: "must be positive",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Command builds the OpenVPN command described by a validated cfg.
func Command(cfg *Config) (*process.Command, error) {
	remotes := make([]process.Remote, 0, len(cfg.Remotes))
	for _, r := range cfg.Remotes {
		remote, err := process.ParseRemote(r)
		if err != nil {
			return nil, err
		}
		remotes = append(remotes, remote)
	}

	return process.NewCommand(process.OpenVPNConfig{
		BinaryPath: cfg.BinaryPath,
		ConfigPath: cfg.ConfigPath,
		Remotes:    remotes,
		PipeOutput: cfg.ForwardOutput(),
	})
}

// Package main provides the talpid-cli entry point.
//
// talpid-cli keeps an OpenVPN client running: it starts it, reports how it
// exited, and starts it again half a second later, until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tdr130/mullvadvpn-app/internal/config"
	"github.com/tdr130/mullvadvpn-app/internal/errchain"
	"github.com/tdr130/mullvadvpn-app/internal/logging"
	"github.com/tdr130/mullvadvpn-app/internal/orchestrator"
	"github.com/tdr130/mullvadvpn-app/internal/process"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/talpid-cli
var version = "dev"

// newLogger builds the logger for a validated configuration.
var newLogger = func(cfg *config.Config) *slog.Logger {
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	if cfg.TUIEnabled {
		return logging.Discard()
	}
	return logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.DebugLogging())
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run executes the command line and returns the process exit status.
// A nil spawner starts the real OpenVPN binary.
func run(args []string, stdout, stderr io.Writer, spawner process.Spawner) int {
	cfg := config.DefaultConfig()
	config.ApplyEnv(cfg, os.Getenv)

	cmd := newRootCmd(cfg, stdout, stderr, spawner)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		errchain.Report(stdout, err, cfg.Backtrace)
		return 1
	}
	return 0
}

func newRootCmd(cfg *config.Config, stdout, stderr io.Writer, spawner process.Spawner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talpid-cli",
		Short: "Keep an OpenVPN client running, restarting it whenever it exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.ShowVersion {
				fmt.Fprintf(stdout, "talpid-cli %s\n", version)
				return nil
			}

			if err := loadSettings(cmd, cfg); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if cfg.PrintCmd {
				return printCommand(stdout, cfg)
			}

			logger := newLogger(cfg)
			logging.SetDefault(logger)

			orch, err := orchestrator.New(cfg, logger, orchestrator.Options{
				Version: version,
				Spawner: spawner,
				Stdout:  stdout,
				Stderr:  stderr,
			})
			if err != nil {
				return err
			}
			return orch.Run(cmd.Context())
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config.BindFlags(cmd.Flags(), cfg)
	return cmd
}

// loadSettings merges the settings file under the flags given on the
// command line. An explicitly named file must exist.
func loadSettings(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.SettingsPath == "" {
		return nil
	}
	file, err := config.LoadFile(cfg.SettingsPath, cmd.Flags().Changed(config.FlagSettings))
	if err != nil {
		return err
	}
	config.Merge(cfg, file, cmd.Flags().Changed)
	return nil
}

// printCommand prints the OpenVPN command that would be supervised.
func printCommand(w io.Writer, cfg *config.Config) error {
	c, err := config.Command(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "# OpenVPN command that would be run:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, c.CommandString())
	return nil
}

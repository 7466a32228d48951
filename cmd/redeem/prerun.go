package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duoink-tools/redeem/internal/config"
	"github.com/duoink-tools/redeem/internal/debug"
	"github.com/duoink-tools/redeem/internal/telemetry"
	"github.com/duoink-tools/redeem/internal/ui"
)

// EventsFileName is the events log inside the state directory.
const EventsFileName = "events.log"

var (
	rootCtx    context.Context
	rootCancel context.CancelFunc

	cfg    config.Config
	logger = slog.New(slog.DiscardHandler)
)

// setupSignalContext creates a context that cancels on SIGINT/SIGTERM so a
// run stops between codes.
func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func rootContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// applyVerbosityFlags propagates --verbose and --quiet to the debug package.
func applyVerbosityFlags() {
	debug.SetVerbose(verboseFlag)
	debug.SetQuiet(quietFlag)
	if jsonOutput {
		ui.SetColor(false)
	}
}

// flagBindings maps persistent flags onto config keys. Flags only override
// the lower layers when set explicitly.
var flagBindings = map[string]string{
	"files.invitation": "invitation-file",
	"files.used":       "used-file",
	"files.error":      "error-file",
	"session.headless": "headless",
}

func loadConfig(cmd *cobra.Command) error {
	config.SetConfigPath(configFile)
	if err := config.Initialize(); err != nil {
		return withExit(ExitConfig, err)
	}
	for key, name := range flagBindings {
		if err := config.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return withExit(ExitConfig, err)
		}
	}
	loaded, err := config.Load()
	if err != nil {
		return withHint(ExitConfig, err, "run 'redeem config' to see the effective settings")
	}
	cfg = loaded
	return nil
}

func setupLogging() {
	logger = config.NewLogger(cfg.Log, os.Stderr, verboseFlag)
	slog.SetDefault(logger)
}

func setupEventLog() {
	debug.SetEventLog(filepath.Join(cfg.State.Dir, EventsFileName))
}

// setupTelemetry installs OTel providers. Telemetry problems never stop a run.
func setupTelemetry() {
	if err := telemetry.Init(rootContext(), Version); err != nil {
		WarnError("telemetry disabled: %v", err)
	}
}

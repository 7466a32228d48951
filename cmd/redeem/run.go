package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/duoink-tools/redeem/internal/browser"
	"github.com/duoink-tools/redeem/internal/config"
	"github.com/duoink-tools/redeem/internal/debug"
	"github.com/duoink-tools/redeem/internal/ledger"
	"github.com/duoink-tools/redeem/internal/lockfile"
	"github.com/duoink-tools/redeem/internal/redeem"
	"github.com/duoink-tools/redeem/internal/runner"
	"github.com/duoink-tools/redeem/internal/telemetry"
	"github.com/duoink-tools/redeem/internal/types"
	"github.com/duoink-tools/redeem/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and redeem every pending code (default command)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRedeem(rootContext())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func ledgerPaths(c config.Config) ledger.Paths {
	return ledger.Paths{
		Invitation: c.Files.Invitation,
		Used:       c.Files.Used,
		Error:      c.Files.Error,
	}
}

func attemptTimeouts(c config.Attempt) redeem.Timeouts {
	return redeem.Timeouts{
		Input:   c.InputTimeout,
		Confirm: c.ConfirmTimeout,
		Click:   c.ClickTimeout,
		Settle:  c.Settle,
		Success: c.SuccessTimeout,
		Poll:    c.PollInterval,
	}
}

func browserOptions(c config.Config) browser.Options {
	return browser.Options{
		BaseURL:         c.Session.BaseURL,
		DashboardURL:    c.Session.DashboardURL,
		Headless:        c.Session.Headless,
		InstallBrowsers: c.Session.InstallBrowsers,
		AuthTimeout:     c.Session.AuthTimeout,
		ActionTimeout:   c.Session.ActionTimeout,
		Settle:          c.Session.Settle,
		ScreenshotDir:   c.Diagnostics.Dir,
		Logger:          logger.With("component", "browser"),
	}
}

// lockLedger takes the run lock and only then reads the ledger, so the
// pending set reflects every append made by the previous holder. The lock is
// released again when the ledger cannot be read.
func lockLedger(stateDir string, info lockfile.LockInfo, paths ledger.Paths) (*lockfile.Lock, *ledger.Ledger, error) {
	lock, err := lockfile.TryLock(stateDir, info)
	if err != nil {
		if errors.Is(err, lockfile.ErrLockBusy) {
			return nil, nil, withHint(ExitLockBusy, err, lockHolderHint(stateDir))
		}
		return nil, nil, err
	}

	l, err := ledger.Load(paths)
	if err != nil {
		if rerr := lock.Release(); rerr != nil {
			WarnError("releasing lock: %v", rerr)
		}
		if errors.Is(err, ledger.ErrSourceMissing) {
			return nil, nil, withHint(ExitFatal, err, fmt.Sprintf("put one invitation code per line in %s", paths.Invitation))
		}
		return nil, nil, err
	}
	return lock, l, nil
}

func runRedeem(ctx context.Context) error {
	machine := redeem.New(
		redeem.WithTimeouts(attemptTimeouts(cfg.Attempt)),
		redeem.WithLogger(logger.With("component", "redeem")),
	)
	r := runner.New(machine,
		runner.WithDelay(cfg.Delay.InterAttempt),
		runner.WithGrace(cfg.Delay.Grace),
		runner.WithLogger(logger.With("component", "runner")),
		runner.WithProgress(printProgress),
	)

	lock, l, err := lockLedger(cfg.State.Dir, lockfile.LockInfo{RunID: r.RunID(), Version: Version}, ledgerPaths(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			WarnError("releasing lock: %v", err)
		}
	}()

	stats := l.Stats()
	debug.PrintNormal("%s %d codes, %d used, %d invalid, %s\n",
		ui.RenderCategory("ledger"), stats.All, stats.Used, stats.Errored,
		ui.RenderAccent(fmt.Sprintf("%d pending", stats.Pending)))

	driver := browser.NewDriver(browserOptions(cfg))
	factory := runner.SessionFactoryFunc(func(ctx context.Context) (runner.Session, error) {
		if !quietFlag && !jsonOutput {
			fmt.Fprintln(os.Stderr, ui.RenderAccent("Opening the browser. Scan the QR code to log in."))
		}
		s, err := driver.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	report, runErr := r.Run(ctx, telemetry.WrapLedger(l), factory)
	printReport(report)

	switch {
	case runErr != nil && errors.Is(runErr, runner.ErrSessionUnavailable):
		return withHint(ExitFatal, runErr, "scan the QR code within session.auth-timeout, or raise it")
	case runErr != nil:
		return withExit(ExitFatal, runErr)
	case report.Stop == runner.StopDailyLimit:
		return withExit(ExitDailyLimit, errors.New("daily redemption limit reached, try again tomorrow"))
	case report.Stop == runner.StopInterrupted:
		return withExit(ExitInterrupted, errors.New("interrupted"))
	}
	return nil
}

func lockHolderHint(dir string) string {
	info, err := lockfile.ReadLockInfo(dir)
	if err != nil || info == nil {
		return "another redeem run is using " + dir
	}
	return fmt.Sprintf("run %s (pid %d) started at %s is still active",
		info.RunID, info.PID, info.StartedAt.Local().Format("15:04:05"))
}

func printProgress(p runner.Progress) {
	if jsonOutput {
		return
	}
	debug.PrintlnNormal(ui.RenderOutcome(p.Index, p.Total, p.Code, p.Outcome))
}

func printReport(report *runner.Report) {
	if report == nil {
		return
	}
	if jsonOutput {
		outputJSON(report)
		return
	}
	if report.Stop == runner.StopNoWork {
		debug.PrintlnNormal(ui.RenderMuted("No pending invitation codes."))
		return
	}

	debug.PrintlnNormal(ui.RenderSeparator())
	debug.PrintNormal("%s %s, %d of %d attempted\n",
		ui.RenderCategory("summary"), report.Stop, report.Attempted, report.Pending)

	kinds := make([]types.Kind, 0, len(report.Counts))
	for k := range report.Counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kindOrder(kinds[i]) < kindOrder(kinds[j]) })
	for _, k := range kinds {
		debug.PrintNormal("  %-22s %d\n", ui.RenderKind(k), report.Counts[k])
	}
	if n := len(report.Untouched); n > 0 {
		debug.PrintNormal("  %s\n", ui.RenderMuted(fmt.Sprintf("%d codes not attempted", n)))
	}
}

func kindOrder(k types.Kind) int {
	for i, known := range types.AllKinds {
		if k == known {
			return i
		}
	}
	return len(types.AllKinds)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/duoink-tools/redeem/internal/ledger"
	"github.com/duoink-tools/redeem/internal/lockfile"
	"github.com/duoink-tools/redeem/internal/ui"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger counts and whether a run is active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := ledgerPaths(cfg)
		if err := printStatus(paths); err != nil {
			return err
		}
		if statusWatch {
			return watchStatus(rootContext(), paths)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Re-render whenever a ledger file changes")
	rootCmd.AddCommand(statusCmd)
}

type statusView struct {
	ledger.Stats
	Files   ledger.Paths       `json:"files"`
	Running bool               `json:"running"`
	Holder  *lockfile.LockInfo `json:"holder,omitempty"`
}

func collectStatus(paths ledger.Paths, stateDir string) (statusView, error) {
	l, err := ledger.Load(paths)
	if err != nil {
		return statusView{}, err
	}
	running, holder := lockfile.Held(stateDir)
	return statusView{Stats: l.Stats(), Files: paths, Running: running, Holder: holder}, nil
}

func printStatus(paths ledger.Paths) error {
	view, err := collectStatus(paths, cfg.State.Dir)
	if err != nil {
		return err
	}
	if jsonOutput {
		outputJSON(view)
		return nil
	}

	fmt.Println(ui.RenderCategory("ledger"))
	fmt.Printf("  %-10s %d  %s\n", "codes", view.All, ui.RenderMuted(view.Files.Invitation))
	fmt.Printf("  %-10s %s  %s\n", "used", ui.RenderPass(fmt.Sprint(view.Used)), ui.RenderMuted(view.Files.Used))
	fmt.Printf("  %-10s %s  %s\n", "invalid", ui.RenderMuted(fmt.Sprint(view.Errored)), ui.RenderMuted(view.Files.Error))
	fmt.Printf("  %-10s %s\n", "pending", ui.RenderAccent(fmt.Sprint(view.Pending)))
	if view.Running {
		msg := "a run is in progress"
		if view.Holder != nil {
			msg = fmt.Sprintf("run %s (pid %d) in progress since %s",
				view.Holder.RunID, view.Holder.PID, view.Holder.StartedAt.Local().Format(time.Kitchen))
		}
		fmt.Println(ui.RenderWarn(msg))
	}
	return nil
}

// watchedFiles returns the directories to watch and the base names that
// trigger a refresh.
func watchedFiles(paths ledger.Paths) (dirs []string, names map[string]bool) {
	names = make(map[string]bool)
	seen := make(map[string]bool)
	for _, p := range paths.Files() {
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
		names[filepath.Base(p)] = true
	}
	return dirs, names
}

func watchStatus(ctx context.Context, paths ledger.Paths) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }() // Best effort cleanup

	dirs, names := watchedFiles(paths)
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "\nWatching for changes... (Press Ctrl+C to exit)\n")
	}

	var debounceTimer *time.Timer
	debounceDelay := 500 * time.Millisecond
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nStopped watching.\n")
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !names[filepath.Base(event.Name)] {
				continue
			}
			// Debounce rapid appends
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				if err := printStatus(paths); err != nil {
					fmt.Fprintf(os.Stderr, "Error refreshing status: %v\n", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		}
	}
}

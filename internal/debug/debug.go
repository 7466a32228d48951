// Package debug holds the process-wide verbosity switches and the
// append-only events log.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("REDEEM_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	logMutex     sync.Mutex
	eventLogPath string
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// SetEventLog points LogEvent at path. An empty path disables the log.
func SetEventLog(path string) {
	logMutex.Lock()
	defer logMutex.Unlock()
	eventLogPath = path
}

// EventLogPath returns the current events log location.
func EventLogPath() string {
	logMutex.Lock()
	defer logMutex.Unlock()
	return eventLogPath
}

// LogEvent appends one line to the events log.
// Format: TIMESTAMP|EVENT_CODE|CODE|RUN_ID|DETAILS
func LogEvent(eventCode, code, runID, details string) {
	if code == "" {
		code = "none"
	}
	if runID == "" {
		runID = fmt.Sprintf("%d", time.Now().Unix())
	}
	// Keep one event per line regardless of what the page said.
	details = strings.NewReplacer("\n", " ", "\r", " ", "|", "/").Replace(details)

	timestamp := time.Now().UTC().Format(time.RFC3339)
	entry := fmt.Sprintf("%s|%s|%s|%s|%s\n", timestamp, eventCode, code, runID, details)

	logMutex.Lock()
	defer logMutex.Unlock()

	if eventLogPath == "" {
		return
	}

	_ = os.MkdirAll(filepath.Dir(eventLogPath), 0o755)

	file, err := os.OpenFile(eventLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - path from configuration
	if err != nil {
		// Silent fail - don't interrupt a run if logging fails
		return
	}
	defer file.Close()

	_, _ = file.WriteString(entry)
}

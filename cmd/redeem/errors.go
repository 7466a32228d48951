package main

import (
	"fmt"
	"os"
)

// printError writes an error message, and its hint when there is one, to
// stderr. An exit-only error with no message prints nothing.
func printError(err error) {
	if err == nil || err.Error() == "" {
		return
	}
	if jsonOutput {
		outputJSONError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
}

// WarnError writes a warning message to stderr and returns.
// Use this for cleanup that must not change the outcome of a run.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

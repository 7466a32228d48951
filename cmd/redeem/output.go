package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

// outputJSONError outputs an error as JSON to stderr.
func outputJSONError(err error) {
	errObj := map[string]interface{}{
		"error": err.Error(),
		"code":  exitCodeFor(err),
	}
	if hint := hintFor(err); hint != "" {
		errObj["hint"] = hint
	}
	_ = writeJSON(os.Stderr, errObj) // Best effort: nothing else to report to
}

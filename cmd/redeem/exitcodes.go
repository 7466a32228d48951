package main

import (
	"context"
	"errors"
)

// Process exit statuses.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitConfig      = 2
	ExitDailyLimit  = 3
	ExitLockBusy    = 4
	ExitInterrupted = 130
)

// exitError carries the process status for an error returned from a command.
type exitError struct {
	code int
	err  error
	hint string
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func withHint(code int, err error, hint string) error {
	return &exitError{code: code, err: err, hint: hint}
}

// exitCodeFor maps a command error to the process status.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFatal
}

// hintFor returns the actionable suggestion attached to err, if any.
func hintFor(err error) string {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.hint
	}
	return ""
}

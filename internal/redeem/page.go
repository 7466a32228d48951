package redeem

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Page.Find when no element reaches the requested
// state before the timeout.
var ErrNotFound = errors.New("element not found")

// State is the condition Page.Find waits for.
type State int

const (
	// Attached waits for the element to be present in the DOM.
	Attached State = iota
	// Visible waits for the element to be present and visible.
	Visible
)

func (s State) String() string {
	switch s {
	case Attached:
		return "attached"
	case Visible:
		return "visible"
	}
	return "unknown"
}

// Page is the slice of an authenticated browser page the machine drives.
// Implementations are not required to be safe for concurrent use.
type Page interface {
	// Find waits up to timeout for the first element matching selector to
	// reach state. It returns ErrNotFound on timeout.
	Find(ctx context.Context, selector string, state State, timeout time.Duration) (Element, error)
	// FindAll returns the elements currently matching selector without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// PressKey sends a key press to the page (e.g. "Escape").
	PressKey(ctx context.Context, key string) error
	// Snapshot captures the current view for diagnostics under the given name.
	Snapshot(ctx context.Context, name string) error
}

// Element is a handle to one element on the page.
type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	Press(ctx context.Context, key string) error
	Type(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
}

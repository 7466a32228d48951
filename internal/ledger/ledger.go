// Package ledger records which invitation codes are still pending, which were
// consumed and which were rejected as invalid.
//
// The ledger is backed by three line-oriented text files: the read-only list
// of all codes, and the append-only used and error lists. Every mark is an
// independent append, so a crash mid-run leaves a valid prefix of the run's
// decisions on disk.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/duoink-tools/redeem/internal/util"
)

// Default file names, relative to the working directory.
const (
	DefaultInvitationFile = "invitation_code.txt"
	DefaultUsedFile       = "used_code.txt"
	DefaultErrorFile      = "error_code.txt"
)

// ErrSourceMissing is returned by Load when the all-codes file cannot be read.
var ErrSourceMissing = errors.New("invitation code source missing")

// Paths locates the three backing files.
type Paths struct {
	Invitation string `json:"invitation"`
	Used       string `json:"used"`
	Error      string `json:"error"`
}

// DefaultPaths returns the file names used when nothing is configured.
func DefaultPaths() Paths {
	return Paths{
		Invitation: DefaultInvitationFile,
		Used:       DefaultUsedFile,
		Error:      DefaultErrorFile,
	}
}

// Files returns the three paths in invitation, used, error order.
func (p Paths) Files() []string {
	return []string{p.Invitation, p.Used, p.Error}
}

// Stats summarizes the ledger at a point in time.
type Stats struct {
	All     int `json:"all"`
	Used    int `json:"used"`
	Errored int `json:"errored"`
	Pending int `json:"pending"`
}

// Ledger is the in-memory view of the three stores.
type Ledger struct {
	mu      sync.Mutex
	paths   Paths
	all     []string
	used    map[string]struct{}
	errored map[string]struct{}

	usedStore  *lineStore
	errorStore *lineStore
}

// Load reads all three stores. A missing used or error file is an empty set
// that will be created on first append.
func Load(paths Paths) (*Ledger, error) {
	all, err := newLineStore(paths.Invitation).readAll(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceMissing, paths.Invitation, err)
	}

	usedStore := newLineStore(paths.Used)
	used, err := usedStore.readAll(true)
	if err != nil {
		return nil, fmt.Errorf("read used codes: %w", err)
	}

	errorStore := newLineStore(paths.Error)
	errored, err := errorStore.readAll(true)
	if err != nil {
		return nil, fmt.Errorf("read error codes: %w", err)
	}

	return &Ledger{
		paths:      paths,
		all:        util.NormalizeCodes(all),
		used:       toSet(used),
		errored:    toSet(errored),
		usedStore:  usedStore,
		errorStore: errorStore,
	}, nil
}

// Paths returns the files this ledger was loaded from.
func (l *Ledger) Paths() Paths {
	return l.paths
}

// Pending returns all − used − errored, computed on every call.
// Callers must not depend on the order of the result.
func (l *Ledger) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := make([]string, 0, len(l.all))
	for _, code := range l.all {
		if _, ok := l.used[code]; ok {
			continue
		}
		if _, ok := l.errored[code]; ok {
			continue
		}
		pending = append(pending, code)
	}
	return pending
}

// MarkUsed records code as consumed.
func (l *Ledger) MarkUsed(code string) error {
	return l.mark(code, l.used, l.usedStore)
}

// MarkError records code as permanently invalid.
func (l *Ledger) MarkError(code string) error {
	return l.mark(code, l.errored, l.errorStore)
}

func (l *Ledger) mark(code string, set map[string]struct{}, store *lineStore) error {
	if code == "" {
		return errors.New("ledger: empty code")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := set[code]; ok {
		return nil
	}
	if err := store.append(code); err != nil {
		return err
	}
	set[code] = struct{}{}
	return nil
}

// IsUsed reports whether code is in the used set.
func (l *Ledger) IsUsed(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.used[code]
	return ok
}

// IsErrored reports whether code is in the error set.
func (l *Ledger) IsErrored(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.errored[code]
	return ok
}

// Stats returns the current counts. Used and errored count only codes that
// are part of the all-codes input.
func (l *Ledger) Stats() Stats {
	pending := len(l.Pending())

	l.mu.Lock()
	defer l.mu.Unlock()

	st := Stats{All: len(l.all), Pending: pending}
	for _, code := range l.all {
		if _, ok := l.used[code]; ok {
			st.Used++
		}
		if _, ok := l.errored[code]; ok {
			st.Errored++
		}
	}
	return st
}

func toSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range util.NormalizeCodes(codes) {
		set[c] = struct{}{}
	}
	return set
}

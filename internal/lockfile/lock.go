// Package lockfile guards a state directory so only one run appends to the
// ledger at a time.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the lock file created inside the state directory.
const FileName = "redeem.lock"

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock already held by another process")

// LockInfo is written into the lock file by the holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	RunID     string    `json:"run_id"`
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Lock is a held exclusive lock. Release it when the run ends.
type Lock struct {
	f    *os.File
	path string
}

// TryLock takes the exclusive lock on dir/redeem.lock without waiting and
// records info in it. It returns ErrLockBusy if another run holds it.
func TryLock(dir string, info LockInfo) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	// #nosec G304 - path is the configured state dir
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	data, err := json.Marshal(info)
	if err != nil {
		_ = flockUnlock(f)
		_ = f.Close()
		return nil, fmt.Errorf("encode lock info: %w", err)
	}
	if err := f.Truncate(0); err == nil {
		_, err = f.WriteAt(data, 0)
		if err == nil {
			err = f.Sync()
		}
	}
	if err != nil {
		_ = flockUnlock(f)
		_ = f.Close()
		return nil, fmt.Errorf("write lock info: %w", err)
	}
	return &Lock{f: f, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release clears the holder info and drops the lock. It is safe to call
// more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := flockUnlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// ReadLockInfo reads the holder info from dir/redeem.lock.
func ReadLockInfo(dir string) (*LockInfo, error) {
	// #nosec G304 - path is the configured state dir
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("cannot parse lock file: %w", err)
	}
	return &info, nil
}

// Held reports whether some process currently holds the lock on dir, and
// who, when the holder info is readable.
func Held(dir string) (bool, *LockInfo) {
	path := filepath.Join(dir, FileName)
	// #nosec G304 - path is the configured state dir
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false, nil
	}
	defer f.Close()

	if err := flockExclusive(f); err != nil {
		info, _ := ReadLockInfo(dir)
		return errors.Is(err, ErrLockBusy), info
	}
	_ = flockUnlock(f)
	return false, nil
}

//go:build unix

package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTryLock(t *testing.T) {
	t.Run("creates state dir and records holder", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), ".redeem")

		lock, err := TryLock(dir, LockInfo{RunID: "run-1", Version: "1.0.0"})
		if err != nil {
			t.Fatalf("TryLock failed: %v", err)
		}
		defer lock.Release()

		info, err := ReadLockInfo(dir)
		if err != nil {
			t.Fatalf("ReadLockInfo failed: %v", err)
		}
		if info.PID != os.Getpid() {
			t.Errorf("PID mismatch: got %d, want %d", info.PID, os.Getpid())
		}
		if info.RunID != "run-1" {
			t.Errorf("RunID mismatch: got %s", info.RunID)
		}
		if info.StartedAt.IsZero() {
			t.Error("StartedAt should be set")
		}
	})

	t.Run("second lock is busy", func(t *testing.T) {
		dir := t.TempDir()

		first, err := TryLock(dir, LockInfo{RunID: "first"})
		if err != nil {
			t.Fatalf("first TryLock failed: %v", err)
		}
		defer first.Release()

		// flock locks belong to the open file description, so a second
		// open in the same process conflicts like another process would.
		_, err = TryLock(dir, LockInfo{RunID: "second"})
		if !errors.Is(err, ErrLockBusy) {
			t.Fatalf("expected ErrLockBusy, got %v", err)
		}

		info, err := ReadLockInfo(dir)
		if err != nil {
			t.Fatalf("ReadLockInfo failed: %v", err)
		}
		if info.RunID != "first" {
			t.Errorf("holder info overwritten: %s", info.RunID)
		}
	})

	t.Run("release allows relock", func(t *testing.T) {
		dir := t.TempDir()

		lock, err := TryLock(dir, LockInfo{RunID: "a", StartedAt: time.Now()})
		if err != nil {
			t.Fatalf("TryLock failed: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if err := lock.Release(); err != nil {
			t.Fatalf("second Release should be a no-op, got %v", err)
		}

		again, err := TryLock(dir, LockInfo{RunID: "b"})
		if err != nil {
			t.Fatalf("relock failed: %v", err)
		}
		again.Release()
	})
}

func TestHeld(t *testing.T) {
	dir := t.TempDir()

	if held, _ := Held(dir); held {
		t.Error("expected not held when no lock file exists")
	}

	lock, err := TryLock(dir, LockInfo{RunID: "holder"})
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}

	held, info := Held(dir)
	if !held {
		t.Error("expected held while lock is taken")
	}
	if info == nil || info.RunID != "holder" {
		t.Errorf("unexpected holder info: %+v", info)
	}

	lock.Release()
	if held, _ := Held(dir); held {
		t.Error("expected not held after release")
	}
}

func TestReadLockInfo(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("file not found", func(t *testing.T) {
		if _, err := ReadLockInfo(filepath.Join(tmpDir, "nonexistent")); err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(tmpDir, FileName), []byte("invalid json"), 0644); err != nil {
			t.Fatalf("failed to write lock file: %v", err)
		}
		if _, err := ReadLockInfo(tmpDir); err == nil {
			t.Error("expected error for invalid format")
		}
	})
}

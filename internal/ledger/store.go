package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// lineStore is one code per line, no header, no escaping.
type lineStore struct {
	path string
}

func newLineStore(path string) *lineStore {
	return &lineStore{path: path}
}

// readAll returns the trimmed non-blank lines of the file. When missingOK is
// set, a nonexistent file reads as empty.
func (s *lineStore) readAll(missingOK bool) ([]string, error) {
	f, err := os.Open(s.path) // #nosec G304 - path comes from configuration
	if err != nil {
		if missingOK && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.path, err)
	}
	return lines, nil
}

// append writes code followed by a newline, creating the file if needed.
// If the file does not end in a newline (hand edited), one is inserted first
// so the new code never merges with the previous line.
func (s *lineStore) append(code string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", s.path, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644) // #nosec G302,G304 - ledger files are plain text
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	prefix, err := needsLeadingNewline(f)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", s.path, err)
	}

	if _, err := f.WriteString(prefix + code + "\n"); err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

func needsLeadingNewline(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "", nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return "", err
	}
	if last[0] == '\n' {
		return "", nil
	}
	return "\n", nil
}

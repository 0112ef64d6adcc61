// Package cache persists the channel's package names between runs as a
// plain text file with one name per line.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NameFile is a package-name cache stored at Path.
type NameFile struct {
	Path string
}

// NewNameFile returns a cache backed by path.
func NewNameFile(path string) *NameFile {
	return &NameFile{Path: path}
}

// Load reads the cached names. It reports false without error when the file
// does not exist. Blank lines are ignored.
func (f *NameFile) Load() ([]string, bool, error) {
	file, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open name cache: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("read name cache: %w", err)
	}
	return names, true, nil
}

// Save overwrites the cache with names.
func (f *NameFile) Save(names []string) error {
	if dir := filepath.Dir(f.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(f.Path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write name cache: %w", err)
	}
	return nil
}

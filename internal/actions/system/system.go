// Package system holds the filesystem operations agent tasks may perform.
// Every path is resolved inside a workspace root.
package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autoplan/internal/atomicfile"
)

var ErrOutsideWorkspace = errors.New("path escapes workspace")

// Resolve joins rel onto root and rejects results outside root.
func Resolve(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideWorkspace)
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("could not resolve workspace: %w", err)
	}
	full := filepath.Join(base, rel)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideWorkspace)
	}
	return full, nil
}

// ReadFile returns at most limit bytes of the file (all of it when limit <= 0)
// and whether it was truncated.
func ReadFile(root, rel string, limit int) (string, bool, error) {
	path, err := Resolve(root, rel)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("could not read file: %w", err)
	}
	if limit > 0 && len(data) > limit {
		return string(data[:limit]), true, nil
	}
	return string(data), false, nil
}

// WriteFileAtomic replaces the file, creating parent folders as needed.
func WriteFileAtomic(root, rel, content string) error {
	path, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create folder: %w", err)
	}
	if err := atomicfile.WriteFile(path, []byte(content), 0); err != nil {
		return fmt.Errorf("could not write file: %w", err)
	}
	return nil
}

func DeleteFile(root, rel string) error {
	path, err := Resolve(root, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

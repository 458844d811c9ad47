package workgraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"autoplan/internal/atomicfile"
)

var (
	ErrNotFound = errors.New("workgraph not found")
	ErrCorrupt  = errors.New("workgraph file is corrupt")
)

// Store reads and replaces whole WorkGraph documents.
type Store interface {
	Load(path string) (*WorkGraph, error)
	Save(wg *WorkGraph, path string) error
}

// FileStore keeps WorkGraphs as indented JSON files.
type FileStore struct {
	now func() time.Time
}

func NewFileStore() *FileStore {
	return &FileStore{now: time.Now}
}

func (s *FileStore) Load(path string) (*WorkGraph, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", clean, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	var wg WorkGraph
	if err := json.Unmarshal(data, &wg); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", clean, ErrCorrupt, err)
	}
	// Hand-authored graphs may omit status.
	wg.Each(func(_ TaskRef, t *Task) bool {
		if t.Status == "" {
			t.Status = StatusTodo
		}
		return true
	})
	if err := wg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", clean, ErrCorrupt, err)
	}
	return &wg, nil
}

// Save replaces the file at path via a temp file and rename, so a crash never
// leaves a torn document behind.
func (s *FileStore) Save(wg *WorkGraph, path string) error {
	if wg == nil {
		return errors.New("workgraph is nil")
	}
	wg.UpdatedAt = s.now().UTC()
	b, err := json.MarshalIndent(wg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workgraph: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := atomicfile.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write workgraph: %w", err)
	}
	return nil
}

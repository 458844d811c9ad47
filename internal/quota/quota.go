// Package quota tracks how many AI-engine invocations remain for the day.
// A Tracker is constructed explicitly, injected where needed and saved by
// its owner; there is no global instance.
package quota

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autoplan/internal/atomicfile"
)

var ErrExhausted = errors.New("daily AI invocation quota exhausted")

type state struct {
	Day  string `json:"day"`
	Used int    `json:"used"`
}

type Tracker struct {
	path  string
	limit int
	now   func() time.Time

	mu    sync.Mutex
	state state
	dirty bool
}

// Load reads the tracker state from path; a missing file starts at zero.
// limit <= 0 means unlimited.
func Load(path string, limit int) (*Tracker, error) {
	t := &Tracker{path: path, limit: limit, now: time.Now}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read quota %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &t.state); err != nil {
			return nil, fmt.Errorf("parse quota %s: %w", path, err)
		}
	}
	return t, nil
}

func (t *Tracker) today() string {
	return t.now().UTC().Format(time.DateOnly)
}

func (t *Tracker) rollover() {
	if d := t.today(); t.state.Day != d {
		t.state = state{Day: d}
		t.dirty = true
	}
}

// Consume takes one invocation or returns ErrExhausted.
func (t *Tracker) Consume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.limit > 0 && t.state.Used >= t.limit {
		return fmt.Errorf("%w (%d/%d used on %s)", ErrExhausted, t.state.Used, t.limit, t.state.Day)
	}
	t.state.Used++
	t.dirty = true
	return nil
}

// Remaining is -1 when unlimited.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit <= 0 {
		return -1
	}
	t.rollover()
	if r := t.limit - t.state.Used; r > 0 {
		return r
	}
	return 0
}

func (t *Tracker) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.state.Used
}

// Save writes the state back if it changed.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	b, err := json.Marshal(t.state)
	if err != nil {
		return fmt.Errorf("marshal quota: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create quota dir: %w", err)
	}
	if err := atomicfile.WriteFile(t.path, b, 0o644); err != nil {
		return fmt.Errorf("write quota: %w", err)
	}
	t.dirty = false
	return nil
}

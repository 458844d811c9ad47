package quota

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	day := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	tr, err := Load(path, 2)
	require.NoError(t, err)
	tr.now = func() time.Time { return day }

	assert.Equal(t, 2, tr.Remaining())
	require.NoError(t, tr.Consume())
	require.NoError(t, tr.Consume())
	err = tr.Consume()
	assert.True(t, errors.Is(err, ErrExhausted), "got %v", err)
	assert.Equal(t, 0, tr.Remaining())
	require.NoError(t, tr.Save())

	reloaded, err := Load(path, 2)
	require.NoError(t, err)
	reloaded.now = func() time.Time { return day.Add(time.Hour) }
	assert.Equal(t, 2, reloaded.Used())
	assert.Error(t, reloaded.Consume())

	reloaded.now = func() time.Time { return day.Add(24 * time.Hour) }
	assert.Equal(t, 0, reloaded.Used(), "a new day starts from zero")
	assert.NoError(t, reloaded.Consume())
}

func TestTrackerUnlimitedAndErrors(t *testing.T) {
	dir := t.TempDir()

	tr, err := Load(filepath.Join(dir, "unlimited.json"), 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.Consume())
	}
	assert.Equal(t, -1, tr.Remaining())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad, 1)
	assert.ErrorContains(t, err, "parse quota")

	untouched, err := Load(filepath.Join(dir, "sub", "never.json"), 3)
	require.NoError(t, err)
	require.NoError(t, untouched.Save())
	assert.NoFileExists(t, filepath.Join(dir, "sub", "never.json"), "clean trackers are not written")
}

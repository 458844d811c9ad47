package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	entries := []Entry{
		{RunID: "r1", GraphID: "g", GraphPath: "a.json", TaskID: "task-1", Title: "Implement(A)", Executor: "agent", Status: "done", StartedAt: base, DurationMs: 120},
		{RunID: "r1", GraphID: "g", GraphPath: "a.json", TaskID: "task-2", Title: "Show(A)", Executor: "shell", Status: "failed", Reason: "timeout", StartedAt: base.Add(time.Second), DurationMs: 3000},
		{RunID: "r2", GraphID: "g", GraphPath: "a.json", TaskID: "task-3", Title: "Implement(B)", Executor: "agent", Status: "done", Output: "ok", StartedAt: base.Add(2 * time.Second), DurationMs: 80},
		{RunID: "r9", GraphID: "h", GraphPath: "other.json", TaskID: "task-1", Title: "Other", Executor: "agent", Status: "done", StartedAt: base},
	}
	for _, e := range entries {
		require.NoError(t, j.Record(ctx, e))
	}

	testCases := []struct {
		name      string
		path      string
		limit     int
		wantTasks []string
	}{
		{name: "All attempts oldest first", path: "a.json", wantTasks: []string{"task-1", "task-2", "task-3"}},
		{name: "Newest two", path: "a.json", limit: 2, wantTasks: []string{"task-2", "task-3"}},
		{name: "Other graph", path: "other.json", wantTasks: []string{"task-1"}},
		{name: "Unknown graph", path: "nope.json"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := j.History(ctx, tc.path, tc.limit)
			require.NoError(t, err)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.TaskID)
				assert.NotEmpty(t, e.ID)
			}
			assert.Equal(t, tc.wantTasks, ids)
		})
	}

	all, err := j.History(ctx, "a.json", 0)
	require.NoError(t, err)
	assert.Equal(t, "timeout", all[1].Reason)
	assert.Equal(t, base.Add(time.Second), all[1].StartedAt)
	assert.Equal(t, int64(3000), all[1].DurationMs)

	stats, err := j.Stats(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"done": 2, "failed": 1}, stats)
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplan/internal/actions"
	"autoplan/internal/journal"
	"autoplan/internal/quota"
	"autoplan/internal/workgraph"
)

var featurePlan = []string{"Implement(A)", "Show(A)", "Implement(B)", "Show(B)", "Enable(B)"}

func newGraph(t *testing.T) (*workgraph.WorkGraph, string) {
	t.Helper()
	wg := workgraph.Synthesize(featurePlan, workgraph.SynthesisOptions{Title: "Feature rollout"})
	path := filepath.Join(t.TempDir(), "feature.json")
	require.NoError(t, workgraph.NewFileStore().Save(wg, path))
	return wg, path
}

func statuses(wg *workgraph.WorkGraph) []workgraph.Status {
	var out []workgraph.Status
	wg.Each(func(_ workgraph.TaskRef, t *workgraph.Task) bool {
		out = append(out, t.Status)
		return true
	})
	return out
}

// recordingStore snapshots task statuses on every save and can be told to fail.
type recordingStore struct {
	inner     workgraph.Store
	snapshots [][]workgraph.Status
	failAfter int
}

func (s *recordingStore) Load(path string) (*workgraph.WorkGraph, error) { return s.inner.Load(path) }

func (s *recordingStore) Save(wg *workgraph.WorkGraph, path string) error {
	if s.failAfter > 0 && len(s.snapshots) >= s.failAfter {
		return errors.New("disk full")
	}
	s.snapshots = append(s.snapshots, statuses(wg))
	return s.inner.Save(wg, path)
}

type countingQuota struct{ left int }

func (q *countingQuota) Consume() error {
	if q.left <= 0 {
		return quota.ErrExhausted
	}
	q.left--
	return nil
}

type memRecorder struct {
	entries []journal.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return m.err
}

type verifierFunc func(ctx context.Context, task *workgraph.Task) error

func (f verifierFunc) Verify(ctx context.Context, task *workgraph.Task) error { return f(ctx, task) }

func TestRunFeatureScenario(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	rec := &memRecorder{}
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	r.Journal = rec

	wg, sum, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TasksCompleted)
	assert.Equal(t, 0, sum.TasksFailed)
	assert.False(t, sum.DryRun)
	assert.Empty(t, sum.Stopped)
	assert.Equal(t, []string{"task-1", "task-2", "task-3", "task-4", "task-5"}, stub.Calls())
	assert.Equal(t, 5, sum.Metrics.Attempts())
	require.Len(t, rec.entries, 5)
	assert.Equal(t, "Enable(B)", rec.entries[4].Title)
	assert.Equal(t, path, rec.entries[4].GraphPath)

	onDisk, err := workgraph.NewFileStore().Load(path)
	require.NoError(t, err)
	assert.Equal(t, statuses(wg), statuses(onDisk))
	assert.Equal(t, workgraph.Counts{Total: 5, Done: 5}, onDisk.Counts())
}

func TestRunIdempotentResume(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)

	_, first, err := r.RunFile(context.Background(), path, Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, first.TasksCompleted)
	assert.Equal(t, StopLimit, first.Stopped)

	// A fresh process resumes from the persisted file.
	_, second, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, second.TasksCompleted)
	assert.Equal(t, 2, second.SkippedDone)

	_, third, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, third.TasksCompleted)
	assert.Equal(t, 5, third.SkippedDone)
	assert.Equal(t, []string{"task-1", "task-2", "task-3", "task-4", "task-5"}, stub.Calls(), "no task runs twice")
}

func TestRunPartialFailureIsolation(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	stub.Fail["task-2"] = "compile error"
	r := NewRunner(workgraph.NewFileStore(), stub, nil)

	wg, sum, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, sum.TasksCompleted)
	assert.Equal(t, 1, sum.TasksFailed)
	failed := wg.Phases[0].Tasks[1]
	assert.Equal(t, workgraph.StatusFailed, failed.Status)
	assert.Equal(t, "compile error", failed.FailureReason)
	assert.Equal(t, 1, failed.Attempts)

	_, again, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.TasksCompleted+again.TasksFailed, "failed tasks wait for a reset")
	assert.Equal(t, 1, again.SkippedFailed)
	assert.Equal(t, 4, again.SkippedDone)
}

func TestRunDryRun(t *testing.T) {
	_, path := newGraph(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	stub := actions.NewStubExecutor()
	var events []EventKind
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	wg, sum, err := r.RunFile(context.Background(), path, Options{
		DryRun:   true,
		Limit:    3,
		Progress: func(ev Event) { events = append(events, ev.Kind) },
	})
	require.NoError(t, err)

	assert.True(t, sum.DryRun)
	assert.Equal(t, []string{"task-1", "task-2", "task-3"}, sum.WouldExecute)
	assert.Equal(t, StopLimit, sum.Stopped)
	assert.Equal(t, 0, sum.TasksCompleted)
	assert.Empty(t, stub.Calls())
	assert.Equal(t, []EventKind{EventWouldExecute, EventWouldExecute, EventWouldExecute}, events)
	assert.Equal(t, workgraph.Counts{Total: 5, Todo: 5}, wg.Counts())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "dry runs never write")
}

func TestRunLimitCountsOnlyAttempts(t *testing.T) {
	wg, path := newGraph(t)
	now := time.Now().UTC()
	wg.Phases[0].Tasks[0].MarkDone(now)
	wg.Phases[0].Tasks[1].MarkFailed("earlier", now)

	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	sum, err := r.Run(context.Background(), wg, path, Options{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"task-3", "task-4"}, stub.Calls())
	assert.Equal(t, 1, sum.SkippedDone)
	assert.Equal(t, 1, sum.SkippedFailed)
	assert.Equal(t, StopLimit, sum.Stopped)
}

func TestRunCancellationBetweenTasks(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	stub.Delay = 30 * time.Millisecond
	r := NewRunner(workgraph.NewFileStore(), stub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg, sum, err := r.RunFile(ctx, path, Options{
		Progress: func(ev Event) {
			if ev.Kind == EventStart && ev.Task.ID == "task-2" {
				cancel()
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, sum.Stopped)
	assert.Equal(t, 2, sum.TasksCompleted, "the in-flight task finishes")
	assert.Equal(t, []workgraph.Status{
		workgraph.StatusDone, workgraph.StatusDone,
		workgraph.StatusTodo, workgraph.StatusTodo, workgraph.StatusTodo,
	}, statuses(wg))
}

func TestRunTimeout(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	stub.Delay = time.Second
	r := NewRunner(workgraph.NewFileStore(), stub, nil)

	wg, sum, err := r.RunFile(context.Background(), path, Options{Limit: 1, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TasksFailed)
	assert.Equal(t, actions.ReasonTimeout, wg.Phases[0].Tasks[0].FailureReason)
}

func TestRunTimeoutOverridesExecutorReason(t *testing.T) {
	_, path := newGraph(t)
	slow := actions.ExecutorFunc(func(ctx context.Context, _ *workgraph.Task, _ time.Duration) actions.Result {
		<-ctx.Done()
		return actions.Failed("signal: killed", "")
	})
	r := NewRunner(workgraph.NewFileStore(), slow, nil)

	wg, _, err := r.RunFile(context.Background(), path, Options{Limit: 1, Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, actions.ReasonTimeout, wg.Phases[0].Tasks[0].FailureReason)
}

func TestRunPersistsAfterEveryAttempt(t *testing.T) {
	_, path := newGraph(t)
	store := &recordingStore{inner: workgraph.NewFileStore()}
	stub := actions.NewStubExecutor()
	stub.Fail["task-3"] = "nope"
	r := NewRunner(store, stub, nil)

	_, _, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, store.snapshots, 5)
	done, failed, todo := workgraph.StatusDone, workgraph.StatusFailed, workgraph.StatusTodo
	assert.Equal(t, []workgraph.Status{done, todo, todo, todo, todo}, store.snapshots[0])
	assert.Equal(t, []workgraph.Status{done, done, failed, todo, todo}, store.snapshots[2])
	assert.Equal(t, []workgraph.Status{done, done, failed, done, done}, store.snapshots[4])
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	_, path := newGraph(t)
	store := &recordingStore{inner: workgraph.NewFileStore(), failAfter: 1}
	stub := actions.NewStubExecutor()
	r := NewRunner(store, stub, nil)

	_, sum, err := r.RunFile(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist after task task-2")
	assert.Equal(t, []string{"task-1", "task-2"}, stub.Calls())
	assert.Equal(t, 2, sum.TasksCompleted)
}

func TestRunLoadErrorsStopBeforeExecution(t *testing.T) {
	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)

	_, _, err := r.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), Options{})
	assert.True(t, errors.Is(err, workgraph.ErrNotFound))
	assert.Empty(t, stub.Calls())
}

func TestRunQuotaStopsRun(t *testing.T) {
	wg, path := newGraph(t)
	wg.Phases[0].Tasks[1].Executor = workgraph.ExecutorShell
	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	r.Quota = &countingQuota{left: 2}

	sum, err := r.Run(context.Background(), wg, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, StopQuota, sum.Stopped)
	assert.Equal(t, []string{"task-1", "task-2", "task-3"}, stub.Calls(), "shell tasks do not use quota")
	assert.Equal(t, workgraph.StatusTodo, wg.Phases[0].Tasks[3].Status)
}

func TestRunQuotaFollowsMeteredOverride(t *testing.T) {
	wg, path := newGraph(t)
	wg.Each(func(_ workgraph.TaskRef, task *workgraph.Task) bool {
		task.Executor = workgraph.ExecutorShell
		task.Command = "true"
		return true
	})
	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	q := &countingQuota{left: 1}
	r.Quota = q

	sum, err := r.Run(context.Background(), wg, path, Options{
		Metered: func(*workgraph.Task) bool { return true },
	})
	require.NoError(t, err)
	assert.Equal(t, StopQuota, sum.Stopped)
	assert.Equal(t, 1, sum.TasksCompleted)
	assert.Equal(t, []string{"task-1"}, stub.Calls())
	assert.Equal(t, 0, q.left)
	assert.Equal(t, workgraph.StatusTodo, wg.Phases[0].Tasks[1].Status)
}

func TestRunConfirmation(t *testing.T) {
	testCases := []struct {
		name      string
		confirm   ConfirmFunc
		wantCalls []string
	}{
		{
			name:      "Decline second task",
			confirm:   func(task *workgraph.Task) (bool, error) { return task.ID != "task-2", nil },
			wantCalls: []string{"task-1"},
		},
		{
			name:    "Prompt error stops",
			confirm: func(*workgraph.Task) (bool, error) { return false, fmt.Errorf("EOF") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, path := newGraph(t)
			stub := actions.NewStubExecutor()
			r := NewRunner(workgraph.NewFileStore(), stub, nil)
			_, sum, err := r.RunFile(context.Background(), path, Options{Confirm: tc.confirm})
			require.NoError(t, err)
			assert.Equal(t, StopDeclined, sum.Stopped)
			assert.Equal(t, tc.wantCalls, stub.Calls())
		})
	}
}

func TestRunVerifierAndJournalErrors(t *testing.T) {
	_, path := newGraph(t)
	stub := actions.NewStubExecutor()
	r := NewRunner(workgraph.NewFileStore(), stub, nil)
	r.Verifier = verifierFunc(func(_ context.Context, task *workgraph.Task) error {
		if task.Title == "Show(A)" {
			return errors.New("definition of done not met: file \"ui/a.tsx\": no matching file")
		}
		return nil
	})
	r.Journal = &memRecorder{err: errors.New("database is locked")}

	wg, sum, err := r.RunFile(context.Background(), path, Options{})
	require.NoError(t, err, "journal failures are not fatal")
	assert.Equal(t, 4, sum.TasksCompleted)
	assert.Equal(t, 1, sum.TasksFailed)
	assert.Contains(t, wg.Phases[0].Tasks[1].FailureReason, "definition of done not met")
}

func TestRunRecoversExecutorPanic(t *testing.T) {
	_, path := newGraph(t)
	boom := actions.ExecutorFunc(func(context.Context, *workgraph.Task, time.Duration) actions.Result {
		panic("nil map")
	})
	r := NewRunner(workgraph.NewFileStore(), boom, nil)

	wg, sum, err := r.RunFile(context.Background(), path, Options{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TasksFailed)
	assert.Contains(t, wg.Phases[0].Tasks[0].FailureReason, "panic in task task-1")
}

func TestReset(t *testing.T) {
	now := time.Now().UTC()
	testCases := []struct {
		name        string
		ids         []string
		wantReset   []string
		wantMissing []string
		wantTodo    int
	}{
		{name: "All failed", wantReset: []string{"task-2", "task-4"}, wantTodo: 4},
		{name: "Selected", ids: []string{"task-4", "task-1", "ghost"}, wantReset: []string{"task-4"}, wantMissing: []string{"ghost"}, wantTodo: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wg := workgraph.Synthesize(featurePlan, workgraph.SynthesisOptions{})
			wg.Phases[0].Tasks[0].MarkDone(now)
			wg.Phases[0].Tasks[1].MarkFailed("x", now)
			wg.Phases[0].Tasks[3].MarkFailed("y", now)

			reset, missing := Reset(wg, tc.ids, now)
			assert.Equal(t, tc.wantReset, reset)
			assert.Equal(t, tc.wantMissing, missing)
			assert.Equal(t, tc.wantTodo, wg.Counts().Todo)
		})
	}
}

package supervisor

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplan/internal/executor"
	"autoplan/internal/workgraph"
)

// blockingRunner waits for cancellation, reporting it like executor.Runner.
type blockingRunner struct {
	started chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) (*executor.Summary, error) {
	close(b.started)
	<-ctx.Done()
	return &executor.Summary{Stopped: executor.StopCancelled}, nil
}

type fixedRunner struct {
	sum *executor.Summary
	err error
}

func (f fixedRunner) Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) (*executor.Summary, error) {
	return f.sum, f.err
}

func TestExecuteStates(t *testing.T) {
	testCases := []struct {
		name   string
		runner fixedRunner
		want   string
	}{
		{name: "All tasks done", runner: fixedRunner{sum: &executor.Summary{TasksCompleted: 2}}, want: StatusSucceeded},
		{name: "A task failed", runner: fixedRunner{sum: &executor.Summary{TasksCompleted: 1, TasksFailed: 1}}, want: StatusFailed},
		{name: "Persist error", runner: fixedRunner{err: errors.New("disk full")}, want: StatusFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(tc.runner, nil)
			res := s.Execute(context.Background(), &workgraph.WorkGraph{}, "g.json", executor.Options{})
			assert.Equal(t, tc.want, res.Run.State)
			assert.Equal(t, "g.json", res.Run.GraphPath)

			_, active := s.Current()
			assert.False(t, active)
		})
	}
}

type capturingRunner struct {
	got  *workgraph.WorkGraph
	path string
}

func (c *capturingRunner) Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) (*executor.Summary, error) {
	c.got, c.path = wg, path
	return &executor.Summary{TasksCompleted: 1}, nil
}

func TestExecuteRunsGivenGraph(t *testing.T) {
	runner := &capturingRunner{}
	wg := &workgraph.WorkGraph{ID: "g1"}

	res := New(runner, nil).Execute(context.Background(), wg, "g.json", executor.Options{})
	require.NoError(t, res.Err)
	assert.Same(t, wg, runner.got)
	assert.Same(t, wg, res.Graph)
	assert.Equal(t, "g.json", runner.path)
}

func TestCancelActiveRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	s := New(runner, nil)

	_, err := s.Cancel("")
	assert.ErrorIs(t, err, ErrNoRun)

	done := make(chan Result, 1)
	go func() { done <- s.Execute(context.Background(), &workgraph.WorkGraph{}, "g.json", executor.Options{}) }()
	<-runner.started

	cur, active := s.Current()
	require.True(t, active)
	assert.Equal(t, StatusRunning, cur.State)

	_, err = s.Cancel("run-99")
	assert.ErrorContains(t, err, "is not active")

	id, err := s.Cancel(cur.ID)
	require.NoError(t, err)
	assert.Equal(t, cur.ID, id)

	select {
	case res := <-done:
		assert.Equal(t, StatusCancelled, res.Run.State)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestWatchSignals(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := New(runnerFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		<-release
	}), nil)
	var forced atomic.Int32
	s.Force = func() { forced.Add(1) }

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sigs := make(chan os.Signal, 2)
	go s.Watch(ctx, sigs)

	done := make(chan Result, 1)
	go func() { done <- s.Execute(context.Background(), &workgraph.WorkGraph{}, "g.json", executor.Options{}) }()
	<-started

	sigs <- syscall.SIGINT
	require.Eventually(t, func() bool {
		cur, ok := s.Current()
		return ok && cur.State == StatusCancelling
	}, 2*time.Second, 10*time.Millisecond)

	sigs <- syscall.SIGINT
	require.Eventually(t, func() bool { return forced.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	close(release)
	res := <-done
	assert.Equal(t, StatusCancelled, res.Run.State)
}

type runnerFunc func(ctx context.Context)

func (f runnerFunc) Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) (*executor.Summary, error) {
	f(ctx)
	return &executor.Summary{Stopped: executor.StopCancelled}, nil
}

func TestExecuteRejectsConcurrentRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	s := New(runner, nil)

	done := make(chan Result, 1)
	go func() { done <- s.Execute(context.Background(), &workgraph.WorkGraph{}, "a.json", executor.Options{}) }()
	<-runner.started

	res := s.Execute(context.Background(), &workgraph.WorkGraph{}, "b.json", executor.Options{})
	assert.ErrorContains(t, res.Err, "already active")

	_, err := s.Cancel("")
	require.NoError(t, err)
	<-done
}

// Package supervisor owns the currently executing WorkGraph run and turns
// interrupts into cooperative cancellation.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"autoplan/internal/executor"
	"autoplan/internal/workgraph"
)

const (
	StatusRunning    = "RUNNING"
	StatusSucceeded  = "SUCCEEDED"
	StatusFailed     = "FAILED"
	StatusCancelling = "CANCELLING"
	StatusCancelled  = "CANCELLED"
)

var ErrNoRun = errors.New("no run is currently active")

// Runner is the part of executor.Runner the supervisor drives.
type Runner interface {
	Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) (*executor.Summary, error)
}

// Run describes the active run.
type Run struct {
	ID        string
	GraphPath string
	State     string
	StartedAt time.Time
}

type Result struct {
	Run     Run
	Graph   *workgraph.WorkGraph
	Summary *executor.Summary
	Err     error
}

type Supervisor struct {
	runner Runner
	log    *slog.Logger

	mu     sync.Mutex
	cur    *Run
	cancel context.CancelFunc
	seq    int

	// Force is called on a second interrupt while a run is cancelling.
	Force func()
}

func New(runner Runner, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{runner: runner, log: log, Force: func() { os.Exit(130) }}
}

// Execute runs wg, saving progress to path, and blocks until the run ends.
// Only one run may be active at a time.
func (s *Supervisor) Execute(ctx context.Context, wg *workgraph.WorkGraph, path string, opts executor.Options) Result {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cur != nil {
		busy := *s.cur
		s.mu.Unlock()
		return Result{Run: busy, Err: fmt.Errorf("run %s is already active", busy.ID)}
	}
	s.seq++
	run := &Run{ID: fmt.Sprintf("run-%d", s.seq), GraphPath: path, State: StatusRunning, StartedAt: time.Now()}
	s.cur, s.cancel = run, cancel
	s.mu.Unlock()

	s.log.Info("run started", "run", run.ID, "path", path)
	sum, err := s.runner.Run(runCtx, wg, path, opts)

	s.mu.Lock()
	switch {
	case err != nil:
		run.State = StatusFailed
	case sum != nil && sum.Stopped == executor.StopCancelled:
		run.State = StatusCancelled
	case sum != nil && sum.TasksFailed > 0:
		run.State = StatusFailed
	default:
		run.State = StatusSucceeded
	}
	final := *run
	s.cur, s.cancel = nil, nil
	s.mu.Unlock()

	s.log.Info("run finished", "run", final.ID, "state", final.State, "err", err)
	return Result{Run: final, Graph: wg, Summary: sum, Err: err}
}

// Current reports the active run.
func (s *Supervisor) Current() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Run{}, false
	}
	return *s.cur, true
}

// Cancel asks the run with the given id to stop after its current task.
// An empty id targets whatever run is active.
func (s *Supervisor) Cancel(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return "", ErrNoRun
	}
	if id != "" && !strings.EqualFold(s.cur.ID, id) {
		return "", fmt.Errorf("run %s is not active (active: %s)", id, s.cur.ID)
	}
	if s.cancel == nil {
		return "", fmt.Errorf("internal error: cancel function not set")
	}
	s.cur.State = StatusCancelling
	s.cancel()
	return s.cur.ID, nil
}

// Watch cancels the active run on the first signal and calls Force on the
// next one. It returns when ctx is done or sigs is closed.
func (s *Supervisor) Watch(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigs:
			if !ok {
				return
			}
			if cur, active := s.Current(); active && cur.State == StatusCancelling {
				s.log.Warn("second interrupt, exiting", "signal", sig.String(), "run", cur.ID)
				s.Force()
				continue
			}
			id, err := s.Cancel("")
			if err != nil {
				s.log.Debug("interrupt with no active run", "signal", sig.String())
				continue
			}
			s.log.Warn("interrupt received, finishing current task", "signal", sig.String(), "run", id)
		}
	}
}

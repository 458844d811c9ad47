package actions

import (
	"context"
	"sync"
	"time"

	"autoplan/internal/workgraph"
)

// StubExecutor succeeds unless a task id (or title) is listed in Fail.
// Delay simulates work and honours the attempt timeout.
type StubExecutor struct {
	Fail  map[string]string
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

func NewStubExecutor() *StubExecutor {
	return &StubExecutor{Fail: map[string]string{}}
}

func (s *StubExecutor) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result {
	s.mu.Lock()
	s.calls = append(s.calls, task.ID)
	s.mu.Unlock()

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return failure(ctx, ctx.Err(), "")
		case <-timer.C:
		}
	}

	if reason, ok := s.Fail[task.ID]; ok {
		return Failed(reason, "")
	}
	if reason, ok := s.Fail[task.Title]; ok {
		return Failed(reason, "")
	}
	return Succeeded("stub: " + task.Title)
}

// Calls returns the ids of every task executed so far, in order.
func (s *StubExecutor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

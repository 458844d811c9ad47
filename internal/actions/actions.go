// Package actions executes WorkGraph tasks: a dispatcher routes each task to
// the executor for its kind, and a verifier checks definition-of-done items.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoplan/internal/workgraph"
)

// ReasonTimeout is the failure reason recorded when an attempt overruns.
const ReasonTimeout = "timeout"

// Result is the outcome of one task attempt.
type Result struct {
	Success bool
	Output  string
	Reason  string
}

func Succeeded(output string) Result { return Result{Success: true, Output: output} }

func Failed(reason, output string) Result {
	return Result{Reason: reason, Output: output}
}

type Executor interface {
	Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result
}

type ExecutorFunc func(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result

func (f ExecutorFunc) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result {
	return f(ctx, task, timeout)
}

// Dispatcher routes a task to the executor registered for its kind.
type Dispatcher struct {
	executors map[string]Executor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: map[string]Executor{}}
}

func (d *Dispatcher) Register(kind string, e Executor) *Dispatcher {
	d.executors[kind] = e
	return d
}

func (d *Dispatcher) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result {
	kind := task.ExecutorKind()
	e, ok := d.executors[kind]
	if !ok {
		return Failed(fmt.Sprintf("no executor registered for kind %q", kind), "")
	}
	return e.Execute(ctx, task, timeout)
}

// withTimeout bounds ctx by timeout when timeout is positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// failure converts an error into a Result, mapping deadline overruns to
// ReasonTimeout.
func failure(ctx context.Context, err error, output string) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failed(ReasonTimeout, output)
	}
	return Failed(err.Error(), output)
}

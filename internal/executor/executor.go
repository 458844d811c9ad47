// Package executor runs a WorkGraph's tasks one at a time, persisting the
// graph after every attempt so an interrupted run resumes where it stopped.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"autoplan/internal/actions"
	"autoplan/internal/journal"
	"autoplan/internal/metrics"
	"autoplan/internal/quota"
	"autoplan/internal/workgraph"
)

const DefaultTaskTimeout = 10 * time.Minute

// Why a run ended before visiting every task.
const (
	StopLimit     = "limit reached"
	StopCancelled = "cancelled"
	StopQuota     = "quota exhausted"
	StopDeclined  = "declined"
)

// Verifier checks definition-of-done items after a successful attempt.
type Verifier interface {
	Verify(ctx context.Context, task *workgraph.Task) error
}

// Recorder receives every attempt; errors are logged, never fatal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Quota is consulted before each agent attempt.
type Quota interface {
	Consume() error
}

// ConfirmFunc approves a task before it runs. Declining stops the run and
// leaves the task todo.
type ConfirmFunc func(task *workgraph.Task) (bool, error)

type EventKind string

const (
	EventStart        EventKind = "start"
	EventDone         EventKind = "done"
	EventFailed       EventKind = "failed"
	EventWouldExecute EventKind = "would-execute"
	EventSkipped      EventKind = "skipped"
)

type Event struct {
	Kind   EventKind
	Phase  string
	Task   *workgraph.Task
	Result actions.Result
	Took   time.Duration
}

type Options struct {
	DryRun bool
	// Limit caps attempted tasks (executed, or would-execute in dry runs);
	// 0 means no limit.
	Limit   int
	Timeout time.Duration
	Confirm ConfirmFunc
	// Progress observes each task as the run visits it.
	Progress func(Event)
	// Metered reports whether a task's attempt draws on Quota. Nil meters
	// agent-kind tasks.
	Metered func(task *workgraph.Task) bool
}

func agentKind(task *workgraph.Task) bool { return task.ExecutorKind() == workgraph.ExecutorAgent }

type Summary struct {
	RunID          string
	TasksCompleted int
	TasksFailed    int
	DryRun         bool
	WouldExecute   []string
	SkippedDone    int
	SkippedFailed  int
	Stopped        string
	Metrics        *metrics.RunMetrics
}

// Runner executes WorkGraph tasks sequentially.
type Runner struct {
	store    workgraph.Store
	executor actions.Executor
	log      *slog.Logger

	Verifier Verifier
	Journal  Recorder
	Quota    Quota

	now func() time.Time
}

func NewRunner(store workgraph.Store, exec actions.Executor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{store: store, executor: exec, log: log, now: time.Now}
}

// RunFile loads the graph at path and runs it. Load errors are returned
// before anything executes.
func (r *Runner) RunFile(ctx context.Context, path string, opts Options) (*workgraph.WorkGraph, *Summary, error) {
	wg, err := r.store.Load(path)
	if err != nil {
		return nil, nil, err
	}
	sum, err := r.Run(ctx, wg, path, opts)
	return wg, sum, err
}

// Run visits phases then tasks in order. Done and failed tasks are skipped;
// failed tasks need an explicit reset. Each attempt's status change is
// saved to path before the next task starts, and a save failure ends the
// run with an error. Task failures never do.
func (r *Runner) Run(ctx context.Context, wg *workgraph.WorkGraph, path string, opts Options) (*Summary, error) {
	runID := uuid.NewString()
	sum := &Summary{RunID: runID, DryRun: opts.DryRun}
	rm := &metrics.RunMetrics{RunID: runID, Start: r.now()}
	sum.Metrics = rm
	defer func() {
		rm.End = r.now()
		rm.Finalize()
	}()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	log := r.log.With("run", runID, "graph", wg.ID)
	log.Info("run started", "path", path, "dry_run", opts.DryRun, "limit", opts.Limit)

	metered := opts.Metered
	if metered == nil {
		metered = agentKind
	}
	attempted := 0
	emit := func(ev Event) {
		if opts.Progress != nil {
			opts.Progress(ev)
		}
	}

phases:
	for pi := range wg.Phases {
		phase := &wg.Phases[pi]
		pm := metrics.PhaseMetrics{Phase: phase.Name, Start: r.now()}

		for ti := range phase.Tasks {
			task := &phase.Tasks[ti]
			switch task.Status {
			case workgraph.StatusDone:
				sum.SkippedDone++
				continue
			case workgraph.StatusFailed:
				sum.SkippedFailed++
				emit(Event{Kind: EventSkipped, Phase: phase.Name, Task: task})
				continue
			}

			if opts.Limit > 0 && attempted >= opts.Limit {
				sum.Stopped = StopLimit
				r.closePhase(rm, &pm)
				break phases
			}
			if ctx.Err() != nil {
				sum.Stopped = StopCancelled
				r.closePhase(rm, &pm)
				break phases
			}

			if opts.DryRun {
				attempted++
				sum.WouldExecute = append(sum.WouldExecute, task.ID)
				emit(Event{Kind: EventWouldExecute, Phase: phase.Name, Task: task})
				continue
			}

			if opts.Confirm != nil {
				ok, err := opts.Confirm(task)
				if err != nil {
					log.Warn("confirmation failed", "task", task.ID, "err", err)
				}
				if err != nil || !ok {
					sum.Stopped = StopDeclined
					r.closePhase(rm, &pm)
					break phases
				}
			}
			if r.Quota != nil && metered(task) {
				if err := r.Quota.Consume(); err != nil {
					if errors.Is(err, quota.ErrExhausted) {
						log.Warn("quota exhausted", "task", task.ID, "err", err)
						sum.Stopped = StopQuota
						r.closePhase(rm, &pm)
						break phases
					}
					return sum, fmt.Errorf("quota: %w", err)
				}
			}

			attempted++
			emit(Event{Kind: EventStart, Phase: phase.Name, Task: task})
			res, tm := r.attempt(ctx, task, timeout)
			pm.Tasks = append(pm.Tasks, tm)

			at := r.now().UTC()
			kind := EventDone
			if res.Success {
				task.MarkDone(at)
				sum.TasksCompleted++
				log.Info("task done", "task", task.ID, "title", task.Title, "ms", tm.DurationMs)
			} else {
				task.MarkFailed(res.Reason, at)
				sum.TasksFailed++
				kind = EventFailed
				log.Warn("task failed", "task", task.ID, "title", task.Title, "reason", res.Reason, "ms", tm.DurationMs)
			}

			if err := r.store.Save(wg, path); err != nil {
				r.closePhase(rm, &pm)
				return sum, fmt.Errorf("persist after task %s: %w", task.ID, err)
			}
			r.record(ctx, log, journal.Entry{
				RunID:      runID,
				GraphID:    wg.ID,
				GraphPath:  path,
				TaskID:     task.ID,
				Title:      task.Title,
				Executor:   task.ExecutorKind(),
				Status:     string(task.Status),
				Reason:     task.FailureReason,
				Output:     res.Output,
				StartedAt:  tm.Start.UTC(),
				DurationMs: tm.DurationMs,
			})
			emit(Event{Kind: kind, Phase: phase.Name, Task: task, Result: res, Took: tm.End.Sub(tm.Start)})
		}
		r.closePhase(rm, &pm)
	}

	log.Info("run finished",
		"completed", sum.TasksCompleted,
		"failed", sum.TasksFailed,
		"would_execute", len(sum.WouldExecute),
		"stopped", sum.Stopped)
	return sum, nil
}

// attempt runs one task under a context that ignores run cancellation but
// honours the per-attempt timeout.
func (r *Runner) attempt(ctx context.Context, task *workgraph.Task, timeout time.Duration) (res actions.Result, tm metrics.TaskMetrics) {
	tm = metrics.TaskMetrics{ID: task.ID, Title: task.Title, Start: r.now()}
	defer func() {
		if rec := recover(); rec != nil {
			res = actions.Failed(fmt.Sprintf("panic in task %s: %v", task.ID, rec), "")
		}
		tm.End = r.now()
		tm.Finalize()
		tm.Success = res.Success
		tm.Reason = res.Reason
	}()

	detached := context.WithoutCancel(ctx)
	actx, cancel := context.WithTimeout(detached, timeout)
	defer cancel()

	res = r.executor.Execute(actx, task, timeout)
	if !res.Success {
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			res.Reason = actions.ReasonTimeout
		}
		if res.Reason == "" {
			res.Reason = "executor reported failure"
		}
		return res, tm
	}
	if r.Verifier != nil {
		if err := r.Verifier.Verify(detached, task); err != nil {
			res.Success = false
			res.Reason = err.Error()
		}
	}
	return res, tm
}

func (r *Runner) record(ctx context.Context, log *slog.Logger, e journal.Entry) {
	if r.Journal == nil {
		return
	}
	if err := r.Journal.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("journal write failed", "task", e.TaskID, "err", err)
	}
}

func (r *Runner) closePhase(rm *metrics.RunMetrics, pm *metrics.PhaseMetrics) {
	if pm.Start.IsZero() || len(pm.Tasks) == 0 {
		pm.Start = time.Time{}
		return
	}
	pm.End = r.now()
	pm.Finalize()
	rm.Phases = append(rm.Phases, *pm)
	pm.Start = time.Time{}
}

// Reset returns failed tasks to todo: the listed ids, or every failed task
// when ids is empty. It reports the ids reset and any ids not found.
func Reset(wg *workgraph.WorkGraph, ids []string, at time.Time) (reset, missing []string) {
	if len(ids) == 0 {
		wg.Each(func(_ workgraph.TaskRef, t *workgraph.Task) bool {
			if t.Reset(at) {
				reset = append(reset, t.ID)
			}
			return true
		})
		return reset, nil
	}
	for _, id := range ids {
		ref, ok := wg.Find(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if wg.Task(ref).Reset(at) {
			reset = append(reset, id)
		}
	}
	return reset, missing
}

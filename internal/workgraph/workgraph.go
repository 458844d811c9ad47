// Package workgraph defines the persisted phase/task tree produced by planning
// and consumed by the runner, together with its JSON store and synthesizer.
package workgraph

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo   Status = "todo"
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusDone, StatusFailed:
		return true
	}
	return false
}

type DoneKind string

const (
	DoneCommand DoneKind = "command"
	DoneFile    DoneKind = "file"
	DoneCode    DoneKind = "code"
)

// Criterion is one definition-of-done item.
type Criterion struct {
	Kind  DoneKind `json:"kind"`
	Value string   `json:"value"`
}

// Executor kinds a task may request.
const (
	ExecutorAgent = "agent"
	ExecutorShell = "shell"
)

type Task struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Intent           string      `json:"intent"`
	Inputs           []string    `json:"inputs,omitempty"`
	Outputs          []string    `json:"outputs,omitempty"`
	DefinitionOfDone []Criterion `json:"definition_of_done,omitempty"`
	Status           Status      `json:"status"`

	Executor      string     `json:"executor,omitempty"`
	Command       string     `json:"command,omitempty"`
	Cost          float64    `json:"cost,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type Phase struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}

type WorkGraph struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Goal      string    `json:"goal"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Phases    []Phase   `json:"phases"`
}

// TaskRef locates a task by phase and task index.
type TaskRef struct {
	Phase int
	Task  int
}

// Task returns a pointer into the graph for in-place status updates.
func (wg *WorkGraph) Task(ref TaskRef) *Task {
	return &wg.Phases[ref.Phase].Tasks[ref.Task]
}

// Find looks a task up by id.
func (wg *WorkGraph) Find(id string) (TaskRef, bool) {
	for pi := range wg.Phases {
		for ti := range wg.Phases[pi].Tasks {
			if wg.Phases[pi].Tasks[ti].ID == id {
				return TaskRef{Phase: pi, Task: ti}, true
			}
		}
	}
	return TaskRef{}, false
}

// Each visits tasks in execution order until fn returns false.
func (wg *WorkGraph) Each(fn func(ref TaskRef, t *Task) bool) {
	for pi := range wg.Phases {
		for ti := range wg.Phases[pi].Tasks {
			if !fn(TaskRef{Phase: pi, Task: ti}, &wg.Phases[pi].Tasks[ti]) {
				return
			}
		}
	}
}

type Counts struct {
	Total  int
	Todo   int
	Done   int
	Failed int
}

func (wg *WorkGraph) Counts() Counts {
	var c Counts
	wg.Each(func(_ TaskRef, t *Task) bool {
		c.Total++
		switch t.Status {
		case StatusDone:
			c.Done++
		case StatusFailed:
			c.Failed++
		default:
			c.Todo++
		}
		return true
	})
	return c
}

// MarkDone and MarkFailed are the only status transitions the runner makes.
func (t *Task) MarkDone(at time.Time) {
	t.Status = StatusDone
	t.Attempts++
	t.FailureReason = ""
	t.UpdatedAt = &at
}

func (t *Task) MarkFailed(reason string, at time.Time) {
	t.Status = StatusFailed
	t.Attempts++
	t.FailureReason = reason
	t.UpdatedAt = &at
}

// Reset returns a failed task to todo. It is an explicit operator action;
// the runner never calls it.
func (t *Task) Reset(at time.Time) bool {
	if t.Status != StatusFailed {
		return false
	}
	t.Status = StatusTodo
	t.FailureReason = ""
	t.UpdatedAt = &at
	return true
}

// ExecutorKind defaults to the agent executor.
func (t *Task) ExecutorKind() string {
	if strings.TrimSpace(t.Executor) == "" {
		return ExecutorAgent
	}
	return t.Executor
}

// Validate checks structural invariants of a loaded or hand-authored graph.
func (wg *WorkGraph) Validate() error {
	seen := map[string]struct{}{}
	for pi, p := range wg.Phases {
		for ti, t := range p.Tasks {
			if strings.TrimSpace(t.ID) == "" {
				return fmt.Errorf("phase %d task %d: missing id", pi+1, ti+1)
			}
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("duplicate task id %q", t.ID)
			}
			seen[t.ID] = struct{}{}
			if !t.Status.Valid() {
				return fmt.Errorf("task %q: invalid status %q", t.ID, t.Status)
			}
			switch t.ExecutorKind() {
			case ExecutorAgent, ExecutorShell:
			default:
				return fmt.Errorf("task %q: unknown executor %q", t.ID, t.Executor)
			}
			for _, c := range t.DefinitionOfDone {
				switch c.Kind {
				case DoneCommand, DoneFile, DoneCode:
				default:
					return fmt.Errorf("task %q: unknown definition-of-done kind %q", t.ID, c.Kind)
				}
			}
		}
	}
	return nil
}

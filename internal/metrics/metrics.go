// Package metrics records timing for a WorkGraph run.
package metrics

import "time"

type TaskMetrics struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
}

type PhaseMetrics struct {
	Phase      string        `json:"phase"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"duration_ms"`
	Tasks      []TaskMetrics `json:"tasks"`
}

type RunMetrics struct {
	RunID      string         `json:"run_id"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	DurationMs int64          `json:"duration_ms"`
	Phases     []PhaseMetrics `json:"phases"`
}

// Finalize computes derived fields once End is set.
func (t *TaskMetrics) Finalize() {
	t.DurationMs = t.End.Sub(t.Start).Milliseconds()
}

func (p *PhaseMetrics) Finalize() {
	p.DurationMs = p.End.Sub(p.Start).Milliseconds()
}

func (r *RunMetrics) Finalize() {
	r.DurationMs = r.End.Sub(r.Start).Milliseconds()
}

// Attempts counts executed tasks across phases.
func (r *RunMetrics) Attempts() int {
	n := 0
	for _, p := range r.Phases {
		n += len(p.Tasks)
	}
	return n
}

// Slowest returns the longest-running task, if any ran.
func (r *RunMetrics) Slowest() (TaskMetrics, bool) {
	var best TaskMetrics
	found := false
	for _, p := range r.Phases {
		for _, t := range p.Tasks {
			if !found || t.DurationMs > best.DurationMs {
				best, found = t, true
			}
		}
	}
	return best, found
}

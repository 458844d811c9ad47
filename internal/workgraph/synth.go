package workgraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPhaseName      = "Implementation"
	DefaultIntentTemplate = "Carry out {action}"
)

type SynthesisOptions struct {
	Title string
	Goal  string
	// PhaseName defaults to DefaultPhaseName.
	PhaseName string
	// IntentTemplate has every "{action}" replaced by the action name.
	IntentTemplate string
	// Costs optionally carries the declared cost of each action, by position.
	Costs []float64
}

// Synthesize turns an ordered action sequence into a single-phase WorkGraph
// with one todo task per action. Inputs, outputs and definition-of-done are
// left for the caller to fill in.
func Synthesize(actions []string, opts SynthesisOptions) *WorkGraph {
	phaseName := opts.PhaseName
	if strings.TrimSpace(phaseName) == "" {
		phaseName = DefaultPhaseName
	}
	tmpl := opts.IntentTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultIntentTemplate
	}

	tasks := make([]Task, len(actions))
	for i, name := range actions {
		tasks[i] = Task{
			ID:     fmt.Sprintf("task-%d", i+1),
			Title:  name,
			Intent: strings.ReplaceAll(tmpl, "{action}", name),
			Status: StatusTodo,
		}
		if i < len(opts.Costs) {
			tasks[i].Cost = opts.Costs[i]
		}
	}

	now := time.Now().UTC()
	return &WorkGraph{
		ID:        uuid.NewString(),
		Title:     opts.Title,
		Goal:      opts.Goal,
		CreatedAt: now,
		UpdatedAt: now,
		Phases: []Phase{{
			ID:    "phase-1",
			Name:  phaseName,
			Tasks: tasks,
		}},
	}
}

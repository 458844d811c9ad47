// Package display renders WorkGraphs, run results and rankings as plain text
// for the terminal and the log.
package display

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"autoplan/internal/workgraph"
)

const maxValueLength = 100

var (
	doneLabel   = color.New(color.FgGreen).SprintFunc()
	failedLabel = color.New(color.FgRed).SprintFunc()
	todoLabel   = color.New(color.FgYellow).SprintFunc()
	dimLabel    = color.New(color.Faint).SprintFunc()
)

// StatusLabel is the bracketed, coloured status used in every listing.
func StatusLabel(s workgraph.Status) string {
	label := fmt.Sprintf("[%-6s]", s)
	switch s {
	case workgraph.StatusDone:
		return doneLabel(label)
	case workgraph.StatusFailed:
		return failedLabel(label)
	default:
		return todoLabel(label)
	}
}

// FormatWorkGraph lists every phase and task. Details (intent, files,
// definition of done) are truncated unless full is set.
func FormatWorkGraph(wg *workgraph.WorkGraph, full bool) string {
	limit := maxValueLength
	if full {
		limit = -1
	}
	c := wg.Counts()

	var sb strings.Builder
	fmt.Fprintf(&sb, "WorkGraph: %s\n", wg.Title)
	fmt.Fprintf(&sb, "Goal:      %s\n", wg.Goal)
	if wg.ID != "" {
		fmt.Fprintf(&sb, "ID:        %s\n", wg.ID)
	}
	fmt.Fprintf(&sb, "Tasks:     %d total, %d todo, %d done, %d failed\n", c.Total, c.Todo, c.Done, c.Failed)
	sb.WriteString("--------------------------------------------------\n")

	for _, phase := range wg.Phases {
		fmt.Fprintf(&sb, "Phase %s: %s\n", phase.ID, phase.Name)
		for _, t := range phase.Tasks {
			fmt.Fprintf(&sb, "  %s %-8s %s", StatusLabel(t.Status), t.ID, t.Title)
			if t.Executor != "" && t.Executor != workgraph.ExecutorAgent {
				fmt.Fprintf(&sb, "  (%s)", t.Executor)
			}
			if t.Cost > 0 {
				fmt.Fprintf(&sb, "  cost=%g", t.Cost)
			}
			sb.WriteString("\n")
			writeDetail(&sb, "intent", t.Intent, limit)
			if t.Command != "" {
				writeDetail(&sb, "command", t.Command, limit)
			}
			if len(t.Inputs) > 0 {
				writeDetail(&sb, "inputs", strings.Join(t.Inputs, ", "), limit)
			}
			if len(t.Outputs) > 0 {
				writeDetail(&sb, "outputs", strings.Join(t.Outputs, ", "), limit)
			}
			for _, d := range t.DefinitionOfDone {
				writeDetail(&sb, "done", fmt.Sprintf("%s: %s", d.Kind, d.Value), limit)
			}
			if t.Status == workgraph.StatusFailed && t.FailureReason != "" {
				writeDetail(&sb, "failure", t.FailureReason, limit)
			}
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

func writeDetail(sb *strings.Builder, key, value string, limit int) {
	fmt.Fprintf(sb, "      %s: %s\n", dimLabel(key), formatValueForDisplay(value, limit))
}

// formatValueForDisplay keeps a value on one line; limit < 0 means no limit.
func formatValueForDisplay(value any, limit int) string {
	s := fmt.Sprintf("%v", value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

package display

import (
	"fmt"
	"strings"

	"autoplan/internal/parser"
	"autoplan/internal/planner"
	"autoplan/internal/utils"
	"autoplan/internal/workgraph"
)

// FormatPlan summarises a successful search and the graph written for it.
func FormatPlan(wg *workgraph.WorkGraph, res *planner.SearchResult, path string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan for %q (%d action(s), cost %g, %d expanded, %d visited):\n",
		wg.Title, len(res.Plan), res.Cost, res.Expanded, res.Visited)
	sb.WriteString("--------------------------------------------------\n")
	n := 0
	for _, phase := range wg.Phases {
		for _, t := range phase.Tasks {
			n++
			fmt.Fprintf(&sb, "  %2d. %s\n", n, t.Title)
		}
	}
	if n == 0 {
		sb.WriteString("  (goal already holds; nothing to do)\n")
	}
	sb.WriteString("--------------------------------------------------\n")
	fmt.Fprintf(&sb, "Wrote %s", path)
	if utils.IsGraphRisky(wg) {
		sb.WriteString("\n" + failedLabel("Warning: this graph contains risky shell commands; review it before running with --execute."))
	}
	return sb.String()
}

// FormatSpecsCatalog lists the goal specs found in a file.
func FormatSpecsCatalog(file string, specs []parser.GoalSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d goal spec(s) in %s:\n", len(specs), file)
	for i, s := range specs {
		fmt.Fprintf(&sb, "  %2d. %s  (entities=%d, templates=%d, goal=%s)\n",
			i+1, s.Title, len(s.Entities), len(s.Actions), formatValueForDisplay(parser.GoalDescription(&s), maxValueLength))
	}
	return strings.TrimRight(sb.String(), "\n")
}

package display

import (
	"fmt"
	"strings"

	"autoplan/internal/executor"
	"autoplan/internal/metrics"
)

func FormatRunMetrics(rm *metrics.RunMetrics) string {
	if rm == nil || rm.Attempts() == 0 {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Execution metrics:\n")
	fmt.Fprintf(&sb, "- Total: %d ms  (run %s)\n", rm.DurationMs, rm.RunID)
	for _, p := range rm.Phases {
		fmt.Fprintf(&sb, "  Phase %s: %d ms\n", p.Phase, p.DurationMs)
		for _, t := range p.Tasks {
			status := "ok"
			if !t.Success {
				status = "err"
			}
			fmt.Fprintf(&sb, "    - %-10s %-24s %6d ms  [%s]\n", t.ID, t.Title, t.DurationMs, status)
		}
	}
	if slow, ok := rm.Slowest(); ok {
		fmt.Fprintf(&sb, "- Slowest: %s (%d ms)\n", slow.ID, slow.DurationMs)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRunSummary is printed after every run, failed tasks or not.
func FormatRunSummary(sum *executor.Summary) string {
	var sb strings.Builder
	if sum.DryRun {
		sb.WriteString("Dry run (pass --execute to run tasks)\n")
		fmt.Fprintf(&sb, "  would execute: %d", len(sum.WouldExecute))
		if len(sum.WouldExecute) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(sum.WouldExecute, ", "))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("Run summary\n")
		fmt.Fprintf(&sb, "  tasksCompleted: %s\n", doneLabel(sum.TasksCompleted))
		if sum.TasksFailed > 0 {
			fmt.Fprintf(&sb, "  tasksFailed:    %s\n", failedLabel(sum.TasksFailed))
		} else {
			fmt.Fprintf(&sb, "  tasksFailed:    %d\n", sum.TasksFailed)
		}
	}
	fmt.Fprintf(&sb, "  skipped:        %d done, %d failed", sum.SkippedDone, sum.SkippedFailed)
	if sum.SkippedFailed > 0 {
		sb.WriteString(" (use `autoplan reset` to retry failed tasks)")
	}
	if sum.Stopped != "" {
		fmt.Fprintf(&sb, "\n  stopped:        %s", sum.Stopped)
	}
	return sb.String()
}

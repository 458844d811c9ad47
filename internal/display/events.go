package display

import (
	"fmt"
	"time"

	"autoplan/internal/executor"
	"autoplan/internal/workgraph"
)

// FormatEvent renders one runner progress event as a single line.
func FormatEvent(ev executor.Event) string {
	t := ev.Task
	switch ev.Kind {
	case executor.EventStart:
		return fmt.Sprintf("%s %-8s %s (%s)", dimLabel("[run   ]"), t.ID, t.Title, t.ExecutorKind())
	case executor.EventDone:
		return fmt.Sprintf("%s %-8s %s  %s", StatusLabel(workgraph.StatusDone), t.ID, t.Title, ev.Took.Round(time.Millisecond))
	case executor.EventFailed:
		return fmt.Sprintf("%s %-8s %s  %s: %s", StatusLabel(workgraph.StatusFailed), t.ID, t.Title,
			ev.Took.Round(time.Millisecond), formatValueForDisplay(ev.Result.Reason, maxValueLength))
	case executor.EventWouldExecute:
		line := fmt.Sprintf("%s %-8s %s (%s)", todoLabel("[would ]"), t.ID, t.Title, t.ExecutorKind())
		if t.Command != "" {
			line += ": " + formatValueForDisplay(t.Command, maxValueLength)
		}
		return line
	case executor.EventSkipped:
		return fmt.Sprintf("%s %-8s %s (failed earlier; reset to retry)", dimLabel("[skip  ]"), t.ID, t.Title)
	default:
		return fmt.Sprintf("[%s] %s", ev.Kind, t.ID)
	}
}
